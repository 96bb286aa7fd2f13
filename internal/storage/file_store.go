// Package storage persists uploaded document bytes on local disk under a
// workspace/document-scoped layout.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// Save writes data to <base>/<workspace>/<document>/<filename> and returns
// the stored path.
func (s *FileStore) Save(workspaceID, documentID uuid.UUID, filename string, data []byte) (string, error) {
	dir := filepath.Join(s.baseDir, workspaceID.String(), documentID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir failed: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload failed: %w", err)
	}
	return path, nil
}

// Remove deletes a stored file and prunes its now-empty parent directory.
func (s *FileStore) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("remove upload failed: %w", err)
	}
	parent := filepath.Dir(path)
	if entries, err := os.ReadDir(parent); err == nil && len(entries) == 0 {
		_ = os.Remove(parent)
	}
	return nil
}
