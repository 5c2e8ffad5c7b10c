package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FilesystemStore keeps payloads as files in a single directory
type FilesystemStore struct {
	rootDir string
}

// NewFilesystemStore creates the root directory if needed
func NewFilesystemStore(rootDir string) (*FilesystemStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("filesystem root is required")
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FilesystemStore{rootDir: rootDir}, nil
}

func (s *FilesystemStore) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.rootDir, key), nil
}

// Put writes content to a temp file and renames it into place, so readers
// never observe a partial payload.
func (s *FilesystemStore) Put(ctx context.Context, key string, content io.Reader, contentType string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.rootDir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close blob: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to store blob: %w", err)
	}
	return nil
}

// Get opens the payload for key
func (s *FilesystemStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Delete removes the payload. A missing payload is not an error.
func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Exists reports whether a payload is stored under key
func (s *FilesystemStore) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}
	return true, nil
}

// HealthCheck verifies the root directory is still present
func (s *FilesystemStore) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		return fmt.Errorf("filesystem health check failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("filesystem health check failed: %s is not a directory", s.rootDir)
	}
	return nil
}
