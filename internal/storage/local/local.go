// Package local stores audit blobs on the local filesystem, for development
// runs without cloud credentials.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore writes objects beneath a root directory.
type BlobStore struct {
	root string
}

// NewBlobStore builds a BlobStore rooted at dir, creating it if needed.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &BlobStore{root: dir}, nil
}

// PutObject writes data to path under the root and returns a file:// URI.
// The content type is ignored; the filesystem has no use for it.
func (s *BlobStore) PutObject(_ context.Context, path, _ string, data []byte) (string, error) {
	clean := filepath.Clean(path)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("object path escapes root: %q", path)
	}

	full := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return "file://" + full, nil
}
