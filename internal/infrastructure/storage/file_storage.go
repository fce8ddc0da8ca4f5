package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
)

// LocalFileStore implements port.FileStore on the local filesystem. Files are
// grouped per expense and stored under a random name so uploads with the same
// original file name never collide.
type LocalFileStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStore creates a local file store rooted at baseDir
func NewLocalFileStore(baseDir string, logger *zap.Logger) *LocalFileStore {
	return &LocalFileStore{baseDir: baseDir, logger: logger}
}

// Verify interface compliance
var _ port.FileStore = (*LocalFileStore)(nil)

// Save writes the receipt bytes and returns the store-relative path
func (s *LocalFileStore) Save(ctx context.Context, expenseID, fileName string, data []byte) (string, error) {
	ext := filepath.Ext(fileName)
	relPath := filepath.Join(expenseID, uuid.NewString()+ext)
	fullPath := filepath.Join(s.baseDir, relPath)

	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		s.logger.Error("Failed to create attachment directory",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return "", fmt.Errorf("create attachment directory: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		s.logger.Error("Failed to write attachment",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("write attachment: %w", err)
	}

	s.logger.Debug("Attachment saved",
		zap.String("path", relPath),
		zap.Int("size", len(data)))
	return relPath, nil
}

// Open reads a previously saved file by its store-relative path
func (s *LocalFileStore) Open(ctx context.Context, path string) ([]byte, error) {
	fullPath := filepath.Join(s.baseDir, path)
	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read attachment",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return data, nil
}

// Delete removes a stored file. Deleting a missing file is a no-op.
func (s *LocalFileStore) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(s.baseDir, path)
	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(fullPath); err != nil {
		s.logger.Error("Failed to delete attachment",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

// FullPath converts a store-relative path to an absolute filesystem path.
// Background scan jobs use it to hand files to external tools.
func (s *LocalFileStore) FullPath(relativePath string) string {
	return filepath.Join(s.baseDir, relativePath)
}

// validatePath rejects paths that escape the base directory
func (s *LocalFileStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes storage directory: %s", fullPath)
	}
	return nil
}
