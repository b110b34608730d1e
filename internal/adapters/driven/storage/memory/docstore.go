package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interfaces.
var (
	_ driven.DocumentStore      = (*DocumentStore)(nil)
	_ driven.ChunkStore         = (*DocumentStore)(nil)
	_ driven.SimilaritySearcher = (*DocumentStore)(nil)
)

// DocumentStore is an in-memory document, chunk and vector store.
// Chunk writes are not transactional: a failed run keeps the batches it
// already inserted.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.PersistedChunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.PersistedChunk),
	}
}

// CreateDocument stores a new document.
func (s *DocumentStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return fmt.Errorf("%w: document %s already exists", domain.ErrInvalidInput, doc.ID)
	}
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// UpdateDocument replaces a stored document.
func (s *DocumentStore) UpdateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return domain.ErrNotFound
	}
	s.documents[doc.ID] = *doc
	return nil
}

// ListDocuments returns an owner's documents, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context, ownerID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []domain.Document{}
	for _, doc := range s.documents {
		if doc.OwnerID == ownerID {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// DeleteChunks removes every chunk of a document.
func (s *DocumentStore) DeleteChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return nil
}

// InsertChunks appends chunks to their documents.
func (s *DocumentStore) InsertChunks(_ context.Context, chunks []domain.PersistedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		c.Metadata = maps.Clone(c.Metadata)
		c.Embedding = append(domain.Embedding(nil), c.Embedding...)
		s.chunks[c.DocumentID] = append(s.chunks[c.DocumentID], c)
	}
	return nil
}

// CountChunks returns the number of chunks stored for a document.
func (s *DocumentStore) CountChunks(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID]), nil
}

// SimilaritySearch ranks the owner's chunks by cosine similarity.
func (s *DocumentStore) SimilaritySearch(
	_ context.Context, query []float32, ownerID string, limit int,
) ([]domain.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []domain.PersistedChunk
	var vectors [][]float32
	for _, chunks := range s.chunks {
		for _, c := range chunks {
			if c.OwnerID == ownerID {
				owned = append(owned, c)
				vectors = append(vectors, c.Embedding)
			}
		}
	}

	ranked := vecmath.TopK(query, vectors, limit)
	results := make([]domain.RetrievedChunk, len(ranked))
	for i, r := range ranked {
		c := owned[r.Pos]
		results[i] = domain.RetrievedChunk{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Content:    c.Content,
			Metadata:   maps.Clone(c.Metadata),
			Similarity: r.Score,
		}
	}
	return results, nil
}
