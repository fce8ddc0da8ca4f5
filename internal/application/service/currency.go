package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
)

// CurrencyNormalizer converts a submitted amount into the organization base
// currency. It produces the canonical converted amount every downstream
// threshold comparison uses. A rate lookup failure degrades to 1.0 and is
// logged, never surfaced.
type CurrencyNormalizer struct {
	rates  port.RateProvider
	logger *zap.Logger
}

// NewCurrencyNormalizer creates a normalizer over the given rate provider
func NewCurrencyNormalizer(rates port.RateProvider, logger *zap.Logger) *CurrencyNormalizer {
	return &CurrencyNormalizer{rates: rates, logger: logger}
}

// Normalize returns the converted amount and the rate that produced it.
// Identical currencies short-circuit to rate 1.0 without a lookup.
func (n *CurrencyNormalizer) Normalize(ctx context.Context, amount decimal.Decimal, from, to string) (converted, rate decimal.Decimal) {
	from = normalizeCurrencyCode(from)
	to = normalizeCurrencyCode(to)

	rate = decimal.NewFromInt(1)
	if from == to || from == "" || to == "" {
		return amount.Mul(rate), rate
	}

	if n.rates == nil {
		n.logger.Warn("No rate provider configured, using 1:1 rate",
			zap.String("from", from), zap.String("to", to))
		return amount.Mul(rate), rate
	}

	looked, err := n.rates.Rate(ctx, from, to)
	if err != nil {
		n.logger.Warn("Currency lookup failed, using 1:1 rate",
			zap.String("from", from), zap.String("to", to), zap.Error(err))
		return amount.Mul(rate), rate
	}
	if looked.IsZero() || looked.IsNegative() {
		n.logger.Warn("Rate provider returned non-positive rate, using 1:1 rate",
			zap.String("from", from), zap.String("to", to), zap.String("rate", looked.String()))
		return amount.Mul(rate), rate
	}

	return amount.Mul(looked), looked
}

func normalizeCurrencyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
