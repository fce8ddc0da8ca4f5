package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/service"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

// ExcelExporter renders expense reports into .xlsx workbooks and implements
// service.ExpenseExporter
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

const (
	sheetSummary  = "Summary"
	sheetExpenses = "Expenses"
)

// Export builds a workbook with a summary sheet and a per-expense sheet
func (e *ExcelExporter) Export(ctx context.Context, orgName string, summary *service.ReportSummary, expenses []*entity.Expense) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetExpenses); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	e.fillSummary(f, orgName, summary)
	e.fillExpenses(f, expenses)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	e.logger.Debug("Workbook rendered",
		zap.String("org_name", orgName),
		zap.Int("expense_rows", len(expenses)))
	return buf.Bytes(), nil
}

func (e *ExcelExporter) fillSummary(f *excelize.File, orgName string, summary *service.ReportSummary) {
	e.setCell(f, sheetSummary, "A1", "Expense report")
	e.setCell(f, sheetSummary, "B1", orgName)
	e.setCell(f, sheetSummary, "A2", "Period")
	e.setCell(f, sheetSummary, "B2", fmt.Sprintf("%s to %s",
		summary.From.Format("2006-01-02"), summary.To.Format("2006-01-02")))

	row := 4
	e.setCell(f, sheetSummary, fmt.Sprintf("A%d", row), "By category")
	row++
	e.writeHeader(f, sheetSummary, row, "Category", "Count", "Total")
	row++
	for _, t := range summary.ByCategory {
		e.setCell(f, sheetSummary, fmt.Sprintf("A%d", row), t.Category)
		e.setCell(f, sheetSummary, fmt.Sprintf("B%d", row), t.Count)
		e.setCell(f, sheetSummary, fmt.Sprintf("C%d", row), t.Total.String())
		row++
	}

	row++
	e.setCell(f, sheetSummary, fmt.Sprintf("A%d", row), "By status")
	row++
	e.writeHeader(f, sheetSummary, row, "Status", "Count", "Total")
	row++
	for _, t := range summary.ByStatus {
		e.setCell(f, sheetSummary, fmt.Sprintf("A%d", row), string(t.Status))
		e.setCell(f, sheetSummary, fmt.Sprintf("B%d", row), t.Count)
		e.setCell(f, sheetSummary, fmt.Sprintf("C%d", row), t.Total.String())
		row++
	}

	row++
	e.setCell(f, sheetSummary, fmt.Sprintf("A%d", row), "By month")
	row++
	e.writeHeader(f, sheetSummary, row, "Month", "Count", "Total")
	row++
	for _, t := range summary.ByMonth {
		e.setCell(f, sheetSummary, fmt.Sprintf("A%d", row), t.Month)
		e.setCell(f, sheetSummary, fmt.Sprintf("B%d", row), t.Count)
		e.setCell(f, sheetSummary, fmt.Sprintf("C%d", row), t.Total.String())
		row++
	}
}

func (e *ExcelExporter) fillExpenses(f *excelize.File, expenses []*entity.Expense) {
	e.writeHeader(f, sheetExpenses, 1,
		"ID", "Title", "Employee", "Category", "Merchant", "Date",
		"Amount", "Currency", "Rate", "Converted", "Status")

	for i, exp := range expenses {
		row := i + 2
		values := []interface{}{
			exp.ID,
			exp.Title,
			exp.EmployeeID,
			exp.Category,
			exp.Merchant,
			exp.ExpenseDate.Format("2006-01-02"),
			exp.Amount.String(),
			exp.CurrencyCode,
			exp.Rate.String(),
			exp.ConvertedAmount.String(),
			string(exp.Status),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				continue
			}
			e.setCell(f, sheetExpenses, cell, v)
		}
	}
}

func (e *ExcelExporter) writeHeader(f *excelize.File, sheet string, row int, titles ...string) {
	for col, title := range titles {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			continue
		}
		e.setCell(f, sheet, cell, title)
	}
}

func (e *ExcelExporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

// Verify interface compliance
var _ service.ExpenseExporter = (*ExcelExporter)(nil)
