package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type mockRates struct {
	rateFunc func(ctx context.Context, from, to string) (decimal.Decimal, error)
}

func (m *mockRates) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if m.rateFunc != nil {
		return m.rateFunc(ctx, from, to)
	}
	return decimal.NewFromInt(1), nil
}

func TestCurrencyNormalizer_Normalize(t *testing.T) {
	logger := zap.NewNop()

	t.Run("applies provider rate", func(t *testing.T) {
		rates := &mockRates{rateFunc: func(ctx context.Context, from, to string) (decimal.Decimal, error) {
			assert.Equal(t, "USD", from)
			assert.Equal(t, "EUR", to)
			return decimal.RequireFromString("0.9"), nil
		}}
		n := NewCurrencyNormalizer(rates, logger)

		converted, rate := n.Normalize(context.Background(), decimal.RequireFromString("100"), "usd", "EUR")
		assert.Equal(t, "90", converted.String())
		assert.Equal(t, "0.9", rate.String())
	})

	t.Run("same currency skips lookup", func(t *testing.T) {
		rates := &mockRates{rateFunc: func(ctx context.Context, from, to string) (decimal.Decimal, error) {
			t.Fatal("lookup must not happen for identical currencies")
			return decimal.Decimal{}, nil
		}}
		n := NewCurrencyNormalizer(rates, logger)

		converted, rate := n.Normalize(context.Background(), decimal.RequireFromString("42.50"), "EUR", "eur")
		assert.True(t, converted.Equal(decimal.RequireFromString("42.50")))
		assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	})

	t.Run("lookup failure degrades to 1:1", func(t *testing.T) {
		rates := &mockRates{rateFunc: func(ctx context.Context, from, to string) (decimal.Decimal, error) {
			return decimal.Decimal{}, errors.New("provider down")
		}}
		n := NewCurrencyNormalizer(rates, logger)

		converted, rate := n.Normalize(context.Background(), decimal.RequireFromString("100"), "USD", "EUR")
		assert.True(t, converted.Equal(decimal.NewFromInt(100)))
		assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	})

	t.Run("non-positive rate degrades to 1:1", func(t *testing.T) {
		rates := &mockRates{rateFunc: func(ctx context.Context, from, to string) (decimal.Decimal, error) {
			return decimal.NewFromInt(0), nil
		}}
		n := NewCurrencyNormalizer(rates, logger)

		converted, rate := n.Normalize(context.Background(), decimal.NewFromInt(7), "USD", "EUR")
		assert.True(t, converted.Equal(decimal.NewFromInt(7)))
		assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	})

	t.Run("nil provider degrades to 1:1", func(t *testing.T) {
		n := NewCurrencyNormalizer(nil, logger)

		converted, rate := n.Normalize(context.Background(), decimal.NewFromInt(5), "USD", "EUR")
		assert.True(t, converted.Equal(decimal.NewFromInt(5)))
		assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	})
}
