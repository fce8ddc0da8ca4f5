package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

// NoteRepository implements port.NoteRepository on sqlite
type NoteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *sql.DB, logger *zap.Logger) port.NoteRepository {
	return &NoteRepository{db: db, logger: logger}
}

// Create appends a note
func (r *NoteRepository) Create(ctx context.Context, note *entity.Note) error {
	query := `
		INSERT INTO notes (id, expense_id, author_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		note.ID, note.ExpenseID, note.AuthorID, note.Body, note.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create note",
			zap.String("expense_id", note.ExpenseID),
			zap.Error(err))
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// ListByExpense lists an expense's notes in chronological order
func (r *NoteRepository) ListByExpense(ctx context.Context, expenseID string) ([]*entity.Note, error) {
	query := `
		SELECT id, expense_id, author_id, body, created_at
		FROM notes
		WHERE expense_id = ?
		ORDER BY created_at, id
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []*entity.Note
	for rows.Next() {
		var n entity.Note
		if err := rows.Scan(&n.ID, &n.ExpenseID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// Verify interface compliance
var _ port.NoteRepository = (*NoteRepository)(nil)
