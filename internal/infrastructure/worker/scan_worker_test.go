package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

type mockAttachmentRepo struct {
	mu      sync.Mutex
	byID    map[string]*entity.Attachment
	results map[string]string
	updated chan string
}

func newMockAttachmentRepo() *mockAttachmentRepo {
	return &mockAttachmentRepo{
		byID:    make(map[string]*entity.Attachment),
		results: make(map[string]string),
		updated: make(chan string, 16),
	}
}

func (m *mockAttachmentRepo) Create(ctx context.Context, a *entity.Attachment) error { return nil }

func (m *mockAttachmentRepo) GetByID(ctx context.Context, id string) (*entity.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id], nil
}

func (m *mockAttachmentRepo) ListByExpense(ctx context.Context, expenseID string) ([]*entity.Attachment, error) {
	return nil, nil
}

func (m *mockAttachmentRepo) UpdateScanResult(ctx context.Context, id, status string, hints *entity.ReceiptHints) error {
	m.mu.Lock()
	m.results[id] = status
	m.mu.Unlock()
	m.updated <- id
	return nil
}

func (m *mockAttachmentRepo) statusOf(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[id]
}

type mockScanner struct {
	scanFunc func(ctx context.Context, filePath, mimeType string) (*entity.ReceiptHints, error)
}

func (m *mockScanner) Scan(ctx context.Context, filePath, mimeType string) (*entity.ReceiptHints, error) {
	return m.scanFunc(ctx, filePath, mimeType)
}

type mockPaths struct{}

func (mockPaths) FullPath(rel string) string { return "/store/" + rel }

func pendingAttachment(id string) *entity.Attachment {
	return &entity.Attachment{
		ID:         id,
		ExpenseID:  "exp-1",
		FileName:   "receipt.png",
		FilePath:   "exp-1/" + id + ".png",
		MimeType:   "image/png",
		ScanStatus: entity.ScanPending,
	}
}

func awaitUpdate(t *testing.T, repo *mockAttachmentRepo) {
	t.Helper()
	select {
	case <-repo.updated:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scan result")
	}
}

func TestScanWorker_ProcessesQueue(t *testing.T) {
	repo := newMockAttachmentRepo()
	repo.byID["att-1"] = pendingAttachment("att-1")

	scanner := &mockScanner{scanFunc: func(ctx context.Context, filePath, mimeType string) (*entity.ReceiptHints, error) {
		assert.Equal(t, "/store/exp-1/att-1.png", filePath)
		assert.Equal(t, "image/png", mimeType)
		return &entity.ReceiptHints{Amount: "42.50", Merchant: "Cafe"}, nil
	}}

	w := NewScanWorker(DefaultScanWorkerConfig(), repo, scanner, mockPaths{}, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.True(t, w.Enqueue("att-1"))
	awaitUpdate(t, repo)
	assert.Equal(t, entity.ScanDone, repo.statusOf("att-1"))
}

func TestScanWorker_MarksFailedOnScanError(t *testing.T) {
	repo := newMockAttachmentRepo()
	repo.byID["att-1"] = pendingAttachment("att-1")

	scanner := &mockScanner{scanFunc: func(ctx context.Context, filePath, mimeType string) (*entity.ReceiptHints, error) {
		return nil, errors.New("vision model unavailable")
	}}

	w := NewScanWorker(DefaultScanWorkerConfig(), repo, scanner, mockPaths{}, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.True(t, w.Enqueue("att-1"))
	awaitUpdate(t, repo)
	assert.Equal(t, entity.ScanFailed, repo.statusOf("att-1"))
}

func TestScanWorker_SkipsAlreadyScanned(t *testing.T) {
	repo := newMockAttachmentRepo()
	done := pendingAttachment("att-1")
	done.ScanStatus = entity.ScanDone
	repo.byID["att-1"] = done
	repo.byID["att-2"] = pendingAttachment("att-2")

	scanner := &mockScanner{scanFunc: func(ctx context.Context, filePath, mimeType string) (*entity.ReceiptHints, error) {
		return &entity.ReceiptHints{}, nil
	}}

	w := NewScanWorker(DefaultScanWorkerConfig(), repo, scanner, mockPaths{}, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.True(t, w.Enqueue("att-1"))
	assert.True(t, w.Enqueue("att-2"))

	// Only att-2 produces an update; att-1 is left untouched
	awaitUpdate(t, repo)
	assert.Equal(t, entity.ScanDone, repo.statusOf("att-2"))
	assert.Empty(t, repo.statusOf("att-1"))
}

func TestScanWorker_EnqueueWhenStoppedOrFull(t *testing.T) {
	repo := newMockAttachmentRepo()
	scanner := &mockScanner{scanFunc: func(ctx context.Context, filePath, mimeType string) (*entity.ReceiptHints, error) {
		return &entity.ReceiptHints{}, nil
	}}

	w := NewScanWorker(ScanWorkerConfig{QueueSize: 1, Concurrency: 1, ScanTimeout: time.Second},
		repo, scanner, mockPaths{}, zap.NewNop())

	// Not started yet
	assert.False(t, w.Enqueue("att-1"))

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())

	// Stopped again
	assert.False(t, w.Enqueue("att-1"))
}

func TestScanWorker_StartTwice(t *testing.T) {
	repo := newMockAttachmentRepo()
	scanner := &mockScanner{scanFunc: func(ctx context.Context, filePath, mimeType string) (*entity.ReceiptHints, error) {
		return &entity.ReceiptHints{}, nil
	}}
	w := NewScanWorker(DefaultScanWorkerConfig(), repo, scanner, mockPaths{}, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
}

func TestManager_StartStopAll(t *testing.T) {
	repo := newMockAttachmentRepo()
	scanner := &mockScanner{scanFunc: func(ctx context.Context, filePath, mimeType string) (*entity.ReceiptHints, error) {
		return &entity.ReceiptHints{}, nil
	}}
	w := NewScanWorker(DefaultScanWorkerConfig(), repo, scanner, mockPaths{}, zap.NewNop())

	m := NewManager(zap.NewNop())
	m.Register(w)

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
}
