package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

// TransactionManager executes a function within a database transaction.
// Nested calls reuse the transaction already carried by the context.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ExpenseRepository persists expense records. UpdateWithVersion applies the
// optimistic concurrency check every workflow transition relies on: the write
// only succeeds when the stored version still equals expense.Version, and the
// version is bumped atomically. A failed check surfaces entity.ErrConflict.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id string) (*entity.Expense, error)
	UpdateWithVersion(ctx context.Context, expense *entity.Expense) error
	ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]*entity.Expense, error)
	ListByOrganization(ctx context.Context, orgID string, limit, offset int) ([]*entity.Expense, error)
	ListPendingForApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.Expense, error)
}

// UserRepository persists organization members
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*entity.User, error)
	// FirstActiveAdmin resolves the fallback approver deterministically:
	// the active admin with the lexically smallest id, or nil when none.
	FirstActiveAdmin(ctx context.Context, orgID string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
}

// OrganizationRepository persists organizations with their categories and
// approval rules
type OrganizationRepository interface {
	Create(ctx context.Context, org *entity.Organization) error
	GetByID(ctx context.Context, id string) (*entity.Organization, error)
	UpdateSettings(ctx context.Context, orgID string, settings entity.OrgSettings) error

	CreateCategory(ctx context.Context, category *entity.Category) error
	GetCategory(ctx context.Context, orgID, name string) (*entity.Category, error)
	ListCategories(ctx context.Context, orgID string) ([]*entity.Category, error)
	SetCategoryActive(ctx context.Context, id string, active bool) error

	CreateRule(ctx context.Context, rule *entity.ApprovalRule) error
	ListRules(ctx context.Context, orgID string) ([]entity.ApprovalRule, error)
	SetRuleActive(ctx context.Context, id string, active bool) error
}

// HistoryRepository appends workflow transition records
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	ListByExpense(ctx context.Context, expenseID string) ([]*entity.ApprovalHistory, error)
}

// AttachmentRepository persists receipt attachments and their scan results
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *entity.Attachment) error
	GetByID(ctx context.Context, id string) (*entity.Attachment, error)
	ListByExpense(ctx context.Context, expenseID string) ([]*entity.Attachment, error)
	UpdateScanResult(ctx context.Context, id, status string, hints *entity.ReceiptHints) error
}

// NoteRepository appends free-text notes on an expense
type NoteRepository interface {
	Create(ctx context.Context, note *entity.Note) error
	ListByExpense(ctx context.Context, expenseID string) ([]*entity.Note, error)
}

// CategoryTotal is one aggregate row of the organization report
type CategoryTotal struct {
	Category string
	Count    int
	Total    decimal.Decimal
}

// StatusTotal aggregates expenses by lifecycle status
type StatusTotal struct {
	Status entity.ExpenseStatus
	Count  int
	Total  decimal.Decimal
}

// MonthTotal aggregates converted amounts per calendar month
type MonthTotal struct {
	Month string // YYYY-MM
	Count int
	Total decimal.Decimal
}

// ReportRepository runs read-only aggregations over historical expenses.
// Totals are over converted (base currency) amounts.
type ReportRepository interface {
	TotalsByCategory(ctx context.Context, orgID string, from, to time.Time) ([]CategoryTotal, error)
	TotalsByStatus(ctx context.Context, orgID string, from, to time.Time) ([]StatusTotal, error)
	TotalsByMonth(ctx context.Context, orgID string, from, to time.Time) ([]MonthTotal, error)
	ListForExport(ctx context.Context, orgID string, from, to time.Time) ([]*entity.Expense, error)
}
