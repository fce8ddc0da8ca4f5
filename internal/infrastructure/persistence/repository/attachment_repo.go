package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

const attachmentColumns = `id, expense_id, file_name, file_path, mime_type,
	size_bytes, scan_status, hints, created_at`

// AttachmentRepository implements port.AttachmentRepository on sqlite
type AttachmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sql.DB, logger *zap.Logger) port.AttachmentRepository {
	return &AttachmentRepository{db: db, logger: logger}
}

// Create inserts a receipt attachment
func (r *AttachmentRepository) Create(ctx context.Context, attachment *entity.Attachment) error {
	query := `
		INSERT INTO attachments (` + attachmentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	hints, err := marshalHints(attachment.Hints)
	if err != nil {
		return err
	}

	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		attachment.ID,
		attachment.ExpenseID,
		attachment.FileName,
		attachment.FilePath,
		attachment.MimeType,
		attachment.SizeBytes,
		attachment.ScanStatus,
		hints,
		attachment.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create attachment",
			zap.String("attachment_id", attachment.ID),
			zap.String("expense_id", attachment.ExpenseID),
			zap.Error(err))
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// GetByID retrieves an attachment, or nil when absent
func (r *AttachmentRepository) GetByID(ctx context.Context, id string) (*entity.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE id = ?`

	attachment, err := scanAttachment(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get attachment", zap.String("attachment_id", id), zap.Error(err))
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	return attachment, nil
}

// ListByExpense lists an expense's attachments in upload order
func (r *AttachmentRepository) ListByExpense(ctx context.Context, expenseID string) ([]*entity.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE expense_id = ? ORDER BY created_at, id`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*entity.Attachment
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, attachment)
	}
	return attachments, rows.Err()
}

// UpdateScanResult writes the outcome of a background receipt scan
func (r *AttachmentRepository) UpdateScanResult(ctx context.Context, id, status string, hints *entity.ReceiptHints) error {
	hintsJSON, err := marshalHints(hints)
	if err != nil {
		return err
	}

	query := `UPDATE attachments SET scan_status = ?, hints = ? WHERE id = ?`
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, status, hintsJSON, id)
	if err != nil {
		r.logger.Error("Failed to update scan result",
			zap.String("attachment_id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("update scan result: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: attachment %s", entity.ErrNotFound, id)
	}
	return nil
}

func marshalHints(hints *entity.ReceiptHints) (sql.NullString, error) {
	if hints == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(hints)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal receipt hints: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanAttachment(row rowScanner) (*entity.Attachment, error) {
	var (
		a     entity.Attachment
		hints sql.NullString
	)

	err := row.Scan(
		&a.ID,
		&a.ExpenseID,
		&a.FileName,
		&a.FilePath,
		&a.MimeType,
		&a.SizeBytes,
		&a.ScanStatus,
		&hints,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if hints.Valid {
		var h entity.ReceiptHints
		if err := json.Unmarshal([]byte(hints.String), &h); err != nil {
			return nil, fmt.Errorf("unmarshal receipt hints: %w", err)
		}
		a.Hints = &h
	}
	return &a, nil
}

// Verify interface compliance
var _ port.AttachmentRepository = (*AttachmentRepository)(nil)
