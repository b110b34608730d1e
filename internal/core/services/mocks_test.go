package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockProvider implements driven.EmbeddingProvider for testing.
// Each text maps to a vector derived from its length unless vectorFor is set.
type mockProvider struct {
	mu        sync.Mutex
	calls     [][]string
	err       error
	failOn    int // 1-based call number that fails; 0 never fails
	reverse   bool
	vectorFor func(text string) []float32
	mutate    func(out []driven.IndexedEmbedding) []driven.IndexedEmbedding
}

func (m *mockProvider) CreateEmbeddings(_ context.Context, texts []string) ([]driven.IndexedEmbedding, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), texts...))
	call := len(m.calls)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if m.failOn != 0 && call == m.failOn {
		return nil, errors.New("provider unavailable")
	}

	out := make([]driven.IndexedEmbedding, len(texts))
	for i, text := range texts {
		vec := []float32{float32(len(text)), 1}
		if m.vectorFor != nil {
			vec = m.vectorFor(text)
		}
		out[i] = driven.IndexedEmbedding{Index: i, Vector: vec}
	}
	if m.reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if m.mutate != nil {
		out = m.mutate(out)
	}
	return out, nil
}

func (m *mockProvider) ModelName() string { return "mock-embed" }

func (m *mockProvider) Ping(_ context.Context) error { return nil }

func (m *mockProvider) Close() error { return nil }

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockSearcher implements driven.SimilaritySearcher for testing.
type mockSearcher struct {
	results   []domain.RetrievedChunk
	err       error
	lastOwner string
	lastLimit int
}

func (m *mockSearcher) SimilaritySearch(
	_ context.Context, _ []float32, ownerID string, limit int,
) ([]domain.RetrievedChunk, error) {
	m.lastOwner = ownerID
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// failingChunkStore wraps the memory store and fails the nth InsertChunks call.
type failingChunkStore struct {
	*memory.DocumentStore
	failOnInsert int
	inserts      int
}

func (s *failingChunkStore) InsertChunks(ctx context.Context, chunks []domain.PersistedChunk) error {
	s.inserts++
	if s.inserts == s.failOnInsert {
		return errors.New("disk full")
	}
	return s.DocumentStore.InsertChunks(ctx, chunks)
}

// txChunkStore wraps the memory store with a staging transaction: writes
// inside WithinTx are applied only when fn succeeds.
type txChunkStore struct {
	*memory.DocumentStore
	txCount int
}

var _ driven.ChunkTransactor = (*txChunkStore)(nil)

type stagedWriter struct {
	deleted []string
	batches [][]domain.PersistedChunk
	failOn  int
}

func (w *stagedWriter) DeleteChunks(_ context.Context, documentID string) error {
	w.deleted = append(w.deleted, documentID)
	return nil
}

func (w *stagedWriter) InsertChunks(_ context.Context, chunks []domain.PersistedChunk) error {
	w.batches = append(w.batches, chunks)
	if w.failOn != 0 && len(w.batches) == w.failOn {
		return errors.New("constraint violation")
	}
	return nil
}

func (s *txChunkStore) WithinTx(ctx context.Context, fn func(context.Context, driven.ChunkWriter) error) error {
	s.txCount++
	w := &stagedWriter{}
	if err := fn(ctx, w); err != nil {
		return err
	}
	for _, id := range w.deleted {
		if err := s.DocumentStore.DeleteChunks(ctx, id); err != nil {
			return err
		}
	}
	for _, b := range w.batches {
		if err := s.DocumentStore.InsertChunks(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// failingTxChunkStore is a txChunkStore whose staged writer fails a batch.
type failingTxChunkStore struct {
	txChunkStore
	failOn int
}

func (s *failingTxChunkStore) WithinTx(ctx context.Context, fn func(context.Context, driven.ChunkWriter) error) error {
	s.txCount++
	return fn(ctx, &stagedWriter{failOn: s.failOn})
}

// dimensionCheckingStore accepts only vectors of length want.
type dimensionCheckingStore struct {
	*memory.DocumentStore
	want    int
	checked []int
}

func (s *dimensionCheckingStore) CheckDimensions(_ context.Context, dims int) error {
	s.checked = append(s.checked, dims)
	if dims != s.want {
		return fmt.Errorf("%w: index holds %d, got %d", domain.ErrConfiguration, s.want, dims)
	}
	return nil
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
	err     error
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	p, ok := m.prompts[name]
	if !ok {
		return "", errors.New("unknown prompt")
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// mockIngestion implements driving.IngestionService for testing.
type mockIngestion struct {
	docStore driven.DocumentStore
	err      error
	seen     domain.DocumentStatus
	calls    int
}

func (m *mockIngestion) ProcessDocument(ctx context.Context, documentID, _ string) error {
	m.calls++
	doc, err := m.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	m.seen = doc.Status
	if m.err != nil {
		doc.Status = domain.DocumentStatusFailed
		doc.ErrorMessage = m.err.Error()
	} else {
		doc.Status = domain.DocumentStatusCompleted
	}
	return errors.Join(m.docStore.UpdateDocument(ctx, doc), m.err)
}

// failingBlobStore fails every operation.
type failingBlobStore struct{}

func (failingBlobStore) Upload(context.Context, string, []byte) error {
	return errors.Join(domain.ErrStorageFailure, errors.New("bucket missing"))
}

func (failingBlobStore) Download(context.Context, string) ([]byte, error) {
	return nil, errors.Join(domain.ErrStorageFailure, errors.New("bucket missing"))
}

func (failingBlobStore) Delete(context.Context, string) error {
	return errors.Join(domain.ErrStorageFailure, errors.New("bucket missing"))
}
