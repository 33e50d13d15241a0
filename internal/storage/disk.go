package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// DiskStore keeps uploads on the local filesystem under a base directory.
// Meant for development and single-node deployments.
type DiskStore struct {
	baseDir string
	logger  *zap.Logger
}

func NewDiskStore(baseDir string, logger *zap.Logger) *DiskStore {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		logger.Warn("Failed to create upload directory", zap.Error(err))
	}
	return &DiskStore{baseDir: baseDir, logger: logger}
}

func (s *DiskStore) Save(_ context.Context, key string, reader io.Reader) error {
	if err := validateKey(key); err != nil {
		return err
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, reader); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(key)))
}

func (s *DiskStore) URL(_ context.Context, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return "/uploads/" + key, nil
}
