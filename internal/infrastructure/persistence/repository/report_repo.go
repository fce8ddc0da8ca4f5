package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

// ReportRepository implements port.ReportRepository on sqlite. Amounts are
// stored as exact decimal text, so totals are accumulated in Go rather than
// through SQL SUM over floats.
type ReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB, logger *zap.Logger) port.ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

type reportRow struct {
	category    string
	status      entity.ExpenseStatus
	expenseDate time.Time
	converted   decimal.Decimal
}

func (r *ReportRepository) rowsInRange(ctx context.Context, orgID string, from, to time.Time) ([]reportRow, error) {
	query := `
		SELECT category, status, expense_date, converted_amount
		FROM expenses
		WHERE organization_id = ? AND expense_date >= ? AND expense_date <= ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, orgID, from, to)
	if err != nil {
		r.logger.Error("Failed to query report rows", zap.String("org_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("query report rows: %w", err)
	}
	defer rows.Close()

	var out []reportRow
	for rows.Next() {
		var (
			row       reportRow
			status    string
			converted string
		)
		if err := rows.Scan(&row.category, &status, &row.expenseDate, &converted); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		row.status = entity.ExpenseStatus(status)
		if row.converted, err = scanDecimal(converted); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TotalsByCategory aggregates converted amounts per category
func (r *ReportRepository) TotalsByCategory(ctx context.Context, orgID string, from, to time.Time) ([]port.CategoryTotal, error) {
	rows, err := r.rowsInRange(ctx, orgID, from, to)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*port.CategoryTotal)
	for _, row := range rows {
		t, ok := totals[row.category]
		if !ok {
			t = &port.CategoryTotal{Category: row.category}
			totals[row.category] = t
		}
		t.Count++
		t.Total = t.Total.Add(row.converted)
	}

	out := make([]port.CategoryTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// TotalsByStatus aggregates converted amounts per lifecycle status
func (r *ReportRepository) TotalsByStatus(ctx context.Context, orgID string, from, to time.Time) ([]port.StatusTotal, error) {
	rows, err := r.rowsInRange(ctx, orgID, from, to)
	if err != nil {
		return nil, err
	}

	totals := make(map[entity.ExpenseStatus]*port.StatusTotal)
	for _, row := range rows {
		t, ok := totals[row.status]
		if !ok {
			t = &port.StatusTotal{Status: row.status}
			totals[row.status] = t
		}
		t.Count++
		t.Total = t.Total.Add(row.converted)
	}

	out := make([]port.StatusTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

// TotalsByMonth aggregates converted amounts per calendar month of the
// expense date
func (r *ReportRepository) TotalsByMonth(ctx context.Context, orgID string, from, to time.Time) ([]port.MonthTotal, error) {
	rows, err := r.rowsInRange(ctx, orgID, from, to)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*port.MonthTotal)
	for _, row := range rows {
		month := row.expenseDate.Format("2006-01")
		t, ok := totals[month]
		if !ok {
			t = &port.MonthTotal{Month: month}
			totals[month] = t
		}
		t.Count++
		t.Total = t.Total.Add(row.converted)
	}

	out := make([]port.MonthTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// ListForExport returns the full expense rows of the period ordered by
// expense date
func (r *ReportRepository) ListForExport(ctx context.Context, orgID string, from, to time.Time) ([]*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + `
		FROM expenses
		WHERE organization_id = ? AND expense_date >= ? AND expense_date <= ?
		ORDER BY expense_date, id`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, orgID, from, to)
	if err != nil {
		r.logger.Error("Failed to list expenses for export", zap.String("org_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("list for export: %w", err)
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

// Verify interface compliance
var _ port.ReportRepository = (*ReportRepository)(nil)
