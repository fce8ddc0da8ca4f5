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

const expenseColumns = `id, organization_id, employee_id, title, amount, currency_code,
	rate, converted_amount, category, merchant, expense_date, status, workflow,
	submitted_at, approved_at, rejected_at, version, created_at, updated_at`

// ExpenseRepository implements port.ExpenseRepository on sqlite. The approval
// workflow travels as a JSON column so the step chain is written atomically
// with the status it belongs to.
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{db: db, logger: logger}
}

// Create inserts a new expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	query := `
		INSERT INTO expenses (` + expenseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	workflowJSON, err := json.Marshal(expense.Workflow)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}

	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		expense.ID,
		expense.OrganizationID,
		expense.EmployeeID,
		expense.Title,
		expense.Amount.String(),
		expense.CurrencyCode,
		expense.Rate.String(),
		expense.ConvertedAmount.String(),
		expense.Category,
		nullString(expense.Merchant),
		expense.ExpenseDate,
		string(expense.Status),
		string(workflowJSON),
		nullTime(expense.SubmittedAt),
		nullTime(expense.ApprovedAt),
		nullTime(expense.RejectedAt),
		expense.Version,
		expense.CreatedAt,
		expense.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create expense",
			zap.String("expense_id", expense.ID),
			zap.Error(err))
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

// GetByID retrieves an expense by its ID, or nil when absent
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

	expense, err := scanExpense(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.String("expense_id", id), zap.Error(err))
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return expense, nil
}

// UpdateWithVersion writes the expense only if the stored version still equals
// expense.Version, bumping the version atomically. A stale snapshot surfaces
// entity.ErrConflict.
func (r *ExpenseRepository) UpdateWithVersion(ctx context.Context, expense *entity.Expense) error {
	query := `
		UPDATE expenses
		SET title = ?, amount = ?, currency_code = ?, rate = ?, converted_amount = ?,
			category = ?, merchant = ?, expense_date = ?, status = ?, workflow = ?,
			submitted_at = ?, approved_at = ?, rejected_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	workflowJSON, err := json.Marshal(expense.Workflow)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		expense.Title,
		expense.Amount.String(),
		expense.CurrencyCode,
		expense.Rate.String(),
		expense.ConvertedAmount.String(),
		expense.Category,
		nullString(expense.Merchant),
		expense.ExpenseDate,
		string(expense.Status),
		string(workflowJSON),
		nullTime(expense.SubmittedAt),
		nullTime(expense.ApprovedAt),
		nullTime(expense.RejectedAt),
		expense.UpdatedAt,
		expense.ID,
		expense.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update expense",
			zap.String("expense_id", expense.ID),
			zap.Error(err))
		return fmt.Errorf("update expense: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: expense %s changed concurrently", entity.ErrConflict, expense.ID)
	}

	expense.Version++
	return nil
}

// ListByEmployee lists an employee's expenses, newest first
func (r *ExpenseRepository) ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + `
		FROM expenses WHERE employee_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return r.list(ctx, query, employeeID, limit, offset)
}

// ListByOrganization lists an organization's expenses, newest first
func (r *ExpenseRepository) ListByOrganization(ctx context.Context, orgID string, limit, offset int) ([]*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + `
		FROM expenses WHERE organization_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return r.list(ctx, query, orgID, limit, offset)
}

// ListPendingForApprover lists expenses whose active workflow step waits on
// the given approver. The active step is resolved from the workflow JSON.
func (r *ExpenseRepository) ListPendingForApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + `
		FROM expenses
		WHERE status = ?
			AND json_extract(workflow, '$.steps[' || json_extract(workflow, '$.current_step') || '].approver_id') = ?
		ORDER BY submitted_at ASC LIMIT ? OFFSET ?`
	return r.list(ctx, query, string(entity.StatusPendingApproval), approverID, limit, offset)
}

func (r *ExpenseRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Expense, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Error(err))
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(row rowScanner) (*entity.Expense, error) {
	var (
		e                       entity.Expense
		amount, rate, converted string
		merchant                sql.NullString
		status, workflowJSON    string
		submittedAt, approvedAt sql.NullTime
		rejectedAt              sql.NullTime
	)

	err := row.Scan(
		&e.ID,
		&e.OrganizationID,
		&e.EmployeeID,
		&e.Title,
		&amount,
		&e.CurrencyCode,
		&rate,
		&converted,
		&e.Category,
		&merchant,
		&e.ExpenseDate,
		&status,
		&workflowJSON,
		&submittedAt,
		&approvedAt,
		&rejectedAt,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if e.Amount, err = scanDecimal(amount); err != nil {
		return nil, err
	}
	if e.Rate, err = scanDecimal(rate); err != nil {
		return nil, err
	}
	if e.ConvertedAmount, err = scanDecimal(converted); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(workflowJSON), &e.Workflow); err != nil {
		return nil, fmt.Errorf("unmarshal workflow: %w", err)
	}
	if e.Workflow.Steps == nil {
		e.Workflow.Steps = []entity.ApprovalStep{}
	}

	e.Status = entity.ExpenseStatus(status)
	e.Merchant = merchant.String
	e.SubmittedAt = timePtr(submittedAt)
	e.ApprovedAt = timePtr(approvedAt)
	e.RejectedAt = timePtr(rejectedAt)
	return &e, nil
}

// Verify interface compliance
var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
