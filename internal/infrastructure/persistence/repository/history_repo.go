package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

// HistoryRepository implements port.HistoryRepository on sqlite. Rows are
// append-only; there is no update or delete path.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Create appends a workflow transition record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	query := `
		INSERT INTO approval_history (
			expense_id, actor_id, previous_status, new_status, action, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		history.ExpenseID,
		history.ActorID,
		string(history.PreviousStatus),
		string(history.NewStatus),
		history.Action,
		nullString(history.Comments),
		history.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval history",
			zap.String("expense_id", history.ExpenseID),
			zap.String("action", history.Action),
			zap.Error(err))
		return fmt.Errorf("create approval history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	history.ID = id
	return nil
}

// ListByExpense lists an expense's transition records in chronological order
func (r *HistoryRepository) ListByExpense(ctx context.Context, expenseID string) ([]*entity.ApprovalHistory, error) {
	query := `
		SELECT id, expense_id, actor_id, previous_status, new_status, action, comments, created_at
		FROM approval_history
		WHERE expense_id = ?
		ORDER BY id
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list approval history",
			zap.String("expense_id", expenseID),
			zap.Error(err))
		return nil, fmt.Errorf("list approval history: %w", err)
	}
	defer rows.Close()

	var records []*entity.ApprovalHistory
	for rows.Next() {
		var (
			h                 entity.ApprovalHistory
			previous, current string
			comments          sql.NullString
		)
		err := rows.Scan(&h.ID, &h.ExpenseID, &h.ActorID, &previous, &current, &h.Action, &comments, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan approval history: %w", err)
		}
		h.PreviousStatus = entity.ExpenseStatus(previous)
		h.NewStatus = entity.ExpenseStatus(current)
		h.Comments = comments.String
		records = append(records, &h)
	}
	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
