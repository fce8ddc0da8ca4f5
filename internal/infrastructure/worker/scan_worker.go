package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/application/service"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

// ScanWorkerConfig holds configuration for the receipt scan worker
type ScanWorkerConfig struct {
	QueueSize   int
	Concurrency int
	ScanTimeout time.Duration
}

// DefaultScanWorkerConfig returns default configuration
func DefaultScanWorkerConfig() ScanWorkerConfig {
	return ScanWorkerConfig{
		QueueSize:   128,
		Concurrency: 2,
		ScanTimeout: 60 * time.Second,
	}
}

// PathResolver maps store-relative attachment paths to filesystem paths
type PathResolver interface {
	FullPath(relativePath string) string
}

// ScanWorker drains the receipt scan queue in the background. A scan failure
// marks the attachment failed and moves on; workflow state is never touched.
type ScanWorker struct {
	config         ScanWorkerConfig
	attachmentRepo port.AttachmentRepository
	scanner        port.ReceiptScanner
	paths          PathResolver
	logger         *zap.Logger

	queue chan string
	wg    sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
}

// NewScanWorker creates a new scan worker
func NewScanWorker(
	config ScanWorkerConfig,
	attachmentRepo port.AttachmentRepository,
	scanner port.ReceiptScanner,
	paths PathResolver,
	logger *zap.Logger,
) *ScanWorker {
	return &ScanWorker{
		config:         config,
		attachmentRepo: attachmentRepo,
		scanner:        scanner,
		paths:          paths,
		logger:         logger,
		queue:          make(chan string, config.QueueSize),
	}
}

// Name implements Worker
func (w *ScanWorker) Name() string { return "receipt-scan-worker" }

// Enqueue implements service.ScanQueue. It never blocks; a full or stopped
// queue reports false and the attachment stays pending.
func (w *ScanWorker) Enqueue(attachmentID string) bool {
	w.mu.Lock()
	running := w.isRunning
	w.mu.Unlock()
	if !running {
		return false
	}

	select {
	case w.queue <- attachmentID:
		return true
	default:
		return false
	}
}

// Start launches the consumer goroutines
func (w *ScanWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("scan worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("ScanWorker started",
		zap.Int("queue_size", w.config.QueueSize),
		zap.Int("concurrency", w.config.Concurrency))

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.consume(runCtx)
	}
	return nil
}

// Stop signals the consumers and waits for in-flight scans to finish
func (w *ScanWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()

	w.logger.Info("ScanWorker stopped")
	return nil
}

func (w *ScanWorker) consume(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case attachmentID := <-w.queue:
			w.process(ctx, attachmentID)
		}
	}
}

func (w *ScanWorker) process(ctx context.Context, attachmentID string) {
	attachment, err := w.attachmentRepo.GetByID(ctx, attachmentID)
	if err != nil {
		w.logger.Error("Failed to load attachment for scan",
			zap.String("attachment_id", attachmentID),
			zap.Error(err))
		return
	}
	if attachment == nil || attachment.ScanStatus != entity.ScanPending {
		return
	}

	scanCtx, cancel := context.WithTimeout(ctx, w.config.ScanTimeout)
	defer cancel()

	hints, err := w.scanner.Scan(scanCtx, w.paths.FullPath(attachment.FilePath), attachment.MimeType)
	if err != nil {
		w.logger.Warn("Receipt scan failed",
			zap.String("attachment_id", attachmentID),
			zap.Error(err))
		if err := w.attachmentRepo.UpdateScanResult(ctx, attachmentID, entity.ScanFailed, nil); err != nil {
			w.logger.Error("Failed to record scan failure",
				zap.String("attachment_id", attachmentID),
				zap.Error(err))
		}
		return
	}

	if err := w.attachmentRepo.UpdateScanResult(ctx, attachmentID, entity.ScanDone, hints); err != nil {
		w.logger.Error("Failed to record scan result",
			zap.String("attachment_id", attachmentID),
			zap.Error(err))
	}
}

// Verify interface compliance
var (
	_ Worker            = (*ScanWorker)(nil)
	_ service.ScanQueue = (*ScanWorker)(nil)
)
