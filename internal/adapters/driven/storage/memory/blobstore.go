package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

// BlobStore keeps uploaded bytes in memory.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// Upload stores a copy of content at path.
func (s *BlobStore) Upload(_ context.Context, path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = append([]byte(nil), content...)
	return nil
}

// Download returns a copy of the bytes at path.
func (s *BlobStore) Download(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[path]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s: %w", domain.ErrStorageFailure, path, domain.ErrNotFound)
	}
	return append([]byte(nil), b...), nil
}

// Delete removes the bytes at path. Deleting a missing path is not an error.
func (s *BlobStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, path)
	return nil
}
