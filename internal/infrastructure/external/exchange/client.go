package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
)

// Client fetches conversion rates from an HTTP rates API and implements
// port.RateProvider. Responses are cached per currency pair for cacheTTL so
// a burst of expense submissions does not hammer the provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration
	logger     *zap.Logger

	mu    sync.Mutex
	cache map[string]cachedRate
}

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// ratesResponse is the provider's wire format:
// {"base":"USD","rates":{"EUR":"0.91", ...}}
// Rates arrive as JSON numbers or strings; decimal handles both.
type ratesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// NewClient creates a rates client
func NewClient(baseURL string, timeout, cacheTTL time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cacheTTL:   cacheTTL,
		logger:     logger,
		cache:      make(map[string]cachedRate),
	}
}

// Rate returns the multiplier from one currency to another
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := from + "/" + to

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok && time.Since(cached.fetchedAt) < c.cacheTTL {
		c.mu.Unlock()
		return cached.rate, nil
	}
	c.mu.Unlock()

	rate, err := c.fetch(ctx, from, to)
	if err != nil {
		return decimal.Decimal{}, err
	}

	c.mu.Lock()
	c.cache[key] = cachedRate{rate: rate, fetchedAt: time.Now()}
	c.mu.Unlock()

	return rate, nil
}

func (c *Client) fetch(ctx context.Context, from, to string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/latest?base=%s&symbols=%s",
		c.baseURL, url.QueryEscape(from), url.QueryEscape(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Rates request failed",
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err))
		return decimal.Decimal{}, fmt.Errorf("fetch rate %s/%s: %w", from, to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("fetch rate %s/%s: unexpected status %d", from, to, resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode rates response: %w", err)
	}

	rate, ok := body.Rates[to]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("fetch rate %s/%s: currency missing from response", from, to)
	}
	return rate, nil
}

// Verify interface compliance
var _ port.RateProvider = (*Client)(nil)
