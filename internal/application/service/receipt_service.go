package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

// ScanQueue hands attachments to the background OCR worker. Enqueue returns
// false when the queue is full or stopped; the attachment simply stays
// unscanned in that case.
type ScanQueue interface {
	Enqueue(attachmentID string) bool
}

// ReceiptService stores uploaded receipt files and schedules best-effort OCR
// extraction. Nothing here touches workflow state.
type ReceiptService interface {
	Upload(ctx context.Context, expenseID, fileName, mimeType string, data []byte) (*entity.Attachment, error)
	Get(ctx context.Context, attachmentID string) (*entity.Attachment, error)
	ListByExpense(ctx context.Context, expenseID string) ([]*entity.Attachment, error)
}

type receiptServiceImpl struct {
	attachmentRepo port.AttachmentRepository
	expenseRepo    port.ExpenseRepository
	files          port.FileStore
	queue          ScanQueue
	maxSizeBytes   int64
	logger         *zap.Logger
}

// NewReceiptService creates the receipt service. queue may be nil when OCR is
// disabled; uploads then stay in the pending scan status.
func NewReceiptService(
	attachmentRepo port.AttachmentRepository,
	expenseRepo port.ExpenseRepository,
	files port.FileStore,
	queue ScanQueue,
	maxSizeBytes int64,
	logger *zap.Logger,
) ReceiptService {
	return &receiptServiceImpl{
		attachmentRepo: attachmentRepo,
		expenseRepo:    expenseRepo,
		files:          files,
		queue:          queue,
		maxSizeBytes:   maxSizeBytes,
		logger:         logger,
	}
}

var allowedReceiptTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// Upload stores the file, records the attachment and enqueues the OCR scan
func (s *receiptServiceImpl) Upload(ctx context.Context, expenseID, fileName, mimeType string, data []byte) (*entity.Attachment, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", entity.ErrValidation)
	}
	if s.maxSizeBytes > 0 && int64(len(data)) > s.maxSizeBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", entity.ErrValidation, s.maxSizeBytes)
	}
	if !allowedReceiptTypes[strings.ToLower(mimeType)] {
		return nil, fmt.Errorf("%w: unsupported receipt type %q", entity.ErrValidation, mimeType)
	}

	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, fmt.Errorf("%w: expense %s", entity.ErrNotFound, expenseID)
	}

	path, err := s.files.Save(ctx, expenseID, fileName, data)
	if err != nil {
		return nil, fmt.Errorf("store receipt: %w", err)
	}

	attachment := &entity.Attachment{
		ID:         uuid.NewString(),
		ExpenseID:  expenseID,
		FileName:   fileName,
		FilePath:   path,
		MimeType:   strings.ToLower(mimeType),
		SizeBytes:  int64(len(data)),
		ScanStatus: entity.ScanPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.attachmentRepo.Create(ctx, attachment); err != nil {
		return nil, err
	}

	if s.queue != nil {
		if !s.queue.Enqueue(attachment.ID) {
			s.logger.Warn("Scan queue full, receipt left unscanned",
				zap.String("attachment_id", attachment.ID))
		}
	}

	s.logger.Info("Receipt uploaded",
		zap.String("expense_id", expenseID),
		zap.String("attachment_id", attachment.ID),
		zap.Int64("size_bytes", attachment.SizeBytes))
	return attachment, nil
}

// Get retrieves one attachment
func (s *receiptServiceImpl) Get(ctx context.Context, attachmentID string) (*entity.Attachment, error) {
	attachment, err := s.attachmentRepo.GetByID(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if attachment == nil {
		return nil, fmt.Errorf("%w: attachment %s", entity.ErrNotFound, attachmentID)
	}
	return attachment, nil
}

// ListByExpense lists an expense's attachments
func (s *receiptServiceImpl) ListByExpense(ctx context.Context, expenseID string) ([]*entity.Attachment, error) {
	return s.attachmentRepo.ListByExpense(ctx, expenseID)
}
