package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_Rate(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("base"))
		assert.Equal(t, "EUR", r.URL.Query().Get("symbols"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"base":"USD","rates":{"EUR":0.91}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, time.Minute, zap.NewNop())

	rate, err := c.Rate(context.Background(), "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.91", rate.String())

	// Second lookup within the TTL is served from cache
	rate, err = c.Rate(context.Background(), "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.91", rate.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RateStringPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"GBP","rates":{"JPY":"189.44"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, time.Minute, zap.NewNop())

	rate, err := c.Rate(context.Background(), "GBP", "JPY")
	require.NoError(t, err)
	assert.Equal(t, "189.44", rate.String())
}

func TestClient_RateErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, 5*time.Second, time.Minute, zap.NewNop())
		_, err := c.Rate(context.Background(), "USD", "EUR")
		assert.Error(t, err)
	})

	t.Run("currency missing from response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"base":"USD","rates":{"GBP":0.79}}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, 5*time.Second, time.Minute, zap.NewNop())
		_, err := c.Rate(context.Background(), "USD", "EUR")
		assert.ErrorContains(t, err, "currency missing")
	})

	t.Run("unreachable provider", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", time.Second, time.Minute, zap.NewNop())
		_, err := c.Rate(context.Background(), "USD", "EUR")
		assert.Error(t, err)
	})
}
