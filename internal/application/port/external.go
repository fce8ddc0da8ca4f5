package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

// RateProvider is the currency conversion collaborator. Rate returns the
// multiplier from one currency to another; implementations may fail and the
// normalizer degrades to 1.0 without surfacing the error to the caller.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// ReceiptScanner extracts structured hints from a receipt file. Results are
// best-effort annotations; a scanner error never blocks or alters workflow
// logic.
type ReceiptScanner interface {
	Scan(ctx context.Context, filePath, mimeType string) (*entity.ReceiptHints, error)
}

// FileStore persists uploaded receipt files
type FileStore interface {
	Save(ctx context.Context, expenseID, fileName string, data []byte) (path string, err error)
	Open(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}
