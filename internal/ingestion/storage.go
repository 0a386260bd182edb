// Package ingestion runs the SignalScope scoring pipeline over stored
// signals: load, score, archive and persist, for single entities and
// concurrent batches.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// StorageClient archives serialized score records as blobs.
type StorageClient interface {
	// PutRecord stores a record blob and returns a reference to it.
	PutRecord(ctx context.Context, entityID, recordID string, data []byte) (string, error)
	GetRecord(ctx context.Context, entityID, recordID string) ([]byte, error)
	DeleteRecord(ctx context.Context, entityID, recordID string) error
}

// recordKey is the blob key shared by all backends. Entity IDs are escaped
// so they cannot introduce path segments.
func recordKey(entityID, recordID string) string {
	return "records/" + url.PathEscape(entityID) + "/" + url.PathEscape(recordID) + ".json"
}

// LocalStorage implements StorageClient using the local filesystem.
// Useful for development, the CLI and testing.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(entityID, recordID string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(recordKey(entityID, recordID)))
}

// PutRecord stores a record blob.
func (s *LocalStorage) PutRecord(ctx context.Context, entityID, recordID string, data []byte) (string, error) {
	path := s.path(entityID, recordID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	return "file://" + path, nil
}

// GetRecord retrieves a record blob.
func (s *LocalStorage) GetRecord(ctx context.Context, entityID, recordID string) ([]byte, error) {
	return os.ReadFile(s.path(entityID, recordID))
}

// DeleteRecord removes a record blob. Missing blobs are not an error.
func (s *LocalStorage) DeleteRecord(ctx context.Context, entityID, recordID string) error {
	err := os.Remove(s.path(entityID, recordID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
