package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore writes export artifacts to a local directory. It backs exports
// in environments without an object store; callers get no URL, so the
// handler serves these artifacts inline.
type FSStore struct {
	dir string
}

// NewFSStore creates the base directory if needed. An empty dir defaults
// to a subdirectory of the system temp dir.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "webscan-exports")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// Put writes the artifact under the store directory, mirroring the object
// key as a relative path.
func (s *FSStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write export artifact: %w", err)
	}
	return "", nil
}
