package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finovate/expenseflow/internal/infrastructure/persistence/sqlite"
)

// getExecutor returns the transaction from the context when present,
// otherwise the shared connection pool
func getExecutor(ctx context.Context, db *sql.DB) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// Decimals are stored as TEXT to keep exact values across round trips
func scanDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse stored decimal %q: %w", s, err)
	}
	return d, nil
}
