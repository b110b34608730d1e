// Package filesystem stores uploaded document bytes under a root directory.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// DefaultDirName is the blob directory under the application data directory.
const DefaultDirName = "blobs"

var _ driven.BlobStore = (*BlobStore)(nil)

// BlobStore maps slash-separated storage paths to files below root.
type BlobStore struct {
	root string
}

// NewBlobStore creates the root directory if needed.
func NewBlobStore(root string) (*BlobStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: blob directory is empty", domain.ErrConfiguration)
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("%w: creating blob directory: %w", domain.ErrStorageFailure, err)
	}
	return &BlobStore{root: root}, nil
}

// Root returns the directory blobs are written under.
func (s *BlobStore) Root() string {
	return s.root
}

// Upload writes content to a temporary file and renames it into place.
func (s *BlobStore) Upload(_ context.Context, path string, content []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		return fmt.Errorf("%w: creating blob directory: %w", domain.ErrStorageFailure, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", domain.ErrStorageFailure, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing blob %s: %w", domain.ErrStorageFailure, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: writing blob %s: %w", domain.ErrStorageFailure, path, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("%w: storing blob %s: %w", domain.ErrStorageFailure, path, err)
	}
	return nil
}

// Download reads the file at path.
func (s *BlobStore) Download(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s: %w", domain.ErrStorageFailure, path, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading blob %s: %w", domain.ErrStorageFailure, path, err)
	}
	return b, nil
}

// Delete removes the file at path. A missing file is not an error.
func (s *BlobStore) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: deleting blob %s: %w", domain.ErrStorageFailure, path, err)
	}
	return nil
}

// resolve rejects paths that are absolute or escape the root.
func (s *BlobStore) resolve(path string) (string, error) {
	local := filepath.FromSlash(path)
	if path == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: invalid blob path %q", domain.ErrInvalidInput, path)
	}
	return filepath.Join(s.root, local), nil
}
