package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

// ExpenseExporter renders a summary and its expense rows into a
// downloadable workbook
type ExpenseExporter interface {
	Export(ctx context.Context, orgName string, summary *ReportSummary, expenses []*entity.Expense) ([]byte, error)
}

// ReportSummary is the aggregate view of an organization's expenses over a
// period. Read-only; no bearing on workflow correctness.
type ReportSummary struct {
	OrganizationID string
	From           time.Time
	To             time.Time
	ByCategory     []port.CategoryTotal
	ByStatus       []port.StatusTotal
	ByMonth        []port.MonthTotal
}

// ReportService runs aggregate reporting queries and exports
type ReportService interface {
	Summary(ctx context.Context, orgID string, from, to time.Time) (*ReportSummary, error)
	ExportWorkbook(ctx context.Context, orgID, orgName string, from, to time.Time) ([]byte, error)
}

type reportServiceImpl struct {
	reportRepo port.ReportRepository
	exporter   ExpenseExporter
	logger     *zap.Logger
}

// NewReportService creates the report service
func NewReportService(reportRepo port.ReportRepository, exporter ExpenseExporter, logger *zap.Logger) ReportService {
	return &reportServiceImpl{reportRepo: reportRepo, exporter: exporter, logger: logger}
}

// Summary aggregates converted amounts by category, status and month
func (s *reportServiceImpl) Summary(ctx context.Context, orgID string, from, to time.Time) (*ReportSummary, error) {
	byCategory, err := s.reportRepo.TotalsByCategory(ctx, orgID, from, to)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.reportRepo.TotalsByStatus(ctx, orgID, from, to)
	if err != nil {
		return nil, err
	}
	byMonth, err := s.reportRepo.TotalsByMonth(ctx, orgID, from, to)
	if err != nil {
		return nil, err
	}

	return &ReportSummary{
		OrganizationID: orgID,
		From:           from,
		To:             to,
		ByCategory:     byCategory,
		ByStatus:       byStatus,
		ByMonth:        byMonth,
	}, nil
}

// ExportWorkbook renders the summary into an .xlsx workbook
func (s *reportServiceImpl) ExportWorkbook(ctx context.Context, orgID, orgName string, from, to time.Time) ([]byte, error) {
	summary, err := s.Summary(ctx, orgID, from, to)
	if err != nil {
		return nil, err
	}

	expenses, err := s.reportRepo.ListForExport(ctx, orgID, from, to)
	if err != nil {
		return nil, err
	}

	data, err := s.exporter.Export(ctx, orgName, summary, expenses)
	if err != nil {
		s.logger.Error("Report export failed", zap.String("org_id", orgID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Report exported",
		zap.String("org_id", orgID),
		zap.Int("size_bytes", len(data)))
	return data, nil
}
