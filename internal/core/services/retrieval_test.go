package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

func hit(id string, similarity float64, filename string) domain.RetrievedChunk {
	c := domain.RetrievedChunk{
		ID:         id,
		DocumentID: "doc-" + id,
		Content:    "content of " + id,
		Similarity: similarity,
	}
	if filename != "" {
		c.Metadata = map[string]any{domain.MetadataFilename: filename}
	}
	return c
}

func TestRetrievalService_Search_FiltersByThreshold(t *testing.T) {
	searcher := &mockSearcher{results: []domain.RetrievedChunk{
		hit("a", 0.9, "a.txt"),
		hit("b", 0.5, "b.txt"),
		hit("c", 0.49, "c.txt"),
		hit("d", 0.7, "d.txt"),
	}}
	svc := NewRetrievalService(NewEmbeddingClient(&mockProvider{}), searcher)

	result := svc.Search(context.Background(), "what is go", "alice",
		domain.RetrieveOptions{MatchCount: 4, SimilarityThreshold: 0.5})

	require.False(t, result.Failed())
	ids := make([]string, len(result.Chunks))
	for i, c := range result.Chunks {
		ids[i] = c.ID
	}
	// Equal to the threshold is kept; store order is preserved.
	assert.Equal(t, []string{"a", "b", "d"}, ids)
	assert.Equal(t, "alice", searcher.lastOwner)
	assert.Equal(t, 4, searcher.lastLimit)
}

func TestRetrievalService_Search_DefaultMatchCount(t *testing.T) {
	searcher := &mockSearcher{}
	svc := NewRetrievalService(NewEmbeddingClient(&mockProvider{}), searcher)

	result := svc.Search(context.Background(), "q", "alice", domain.RetrieveOptions{})

	assert.False(t, result.Failed())
	assert.NotNil(t, result.Chunks)
	assert.Empty(t, result.Chunks)
	assert.Equal(t, domain.DefaultMatchCount, searcher.lastLimit)
}

func TestRetrievalService_Search_ZeroThresholdDropsNegative(t *testing.T) {
	searcher := &mockSearcher{results: []domain.RetrievedChunk{hit("a", 0.01, ""), hit("b", -0.2, "")}}
	svc := NewRetrievalService(NewEmbeddingClient(&mockProvider{}), searcher)

	result := svc.Search(context.Background(), "q", "alice", domain.RetrieveOptions{SimilarityThreshold: 0})

	assert.Len(t, result.Chunks, 1)
}

func TestRetrievalService_Search_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider *mockProvider
		searcher *mockSearcher
		wantErr  error
	}{
		{
			name:     "embedding failure",
			provider: &mockProvider{err: errors.New("timeout")},
			searcher: &mockSearcher{results: []domain.RetrievedChunk{hit("a", 1, "")}},
			wantErr:  domain.ErrEmbeddingFailure,
		},
		{
			name:     "missing configuration",
			provider: &mockProvider{err: domain.ErrConfiguration},
			searcher: &mockSearcher{},
			wantErr:  domain.ErrConfiguration,
		},
		{
			name:     "search failure",
			provider: &mockProvider{},
			searcher: &mockSearcher{err: domain.ErrStorageFailure},
			wantErr:  domain.ErrStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRetrievalService(NewEmbeddingClient(tt.provider), tt.searcher)

			result := svc.Search(context.Background(), "q", "alice", domain.RetrieveOptions{})

			assert.True(t, result.Failed())
			assert.ErrorIs(t, result.Err, tt.wantErr)
			assert.Empty(t, result.Chunks)

			// Retrieve hides the failure behind an empty result.
			chunks := svc.Retrieve(context.Background(), "q", "alice", domain.RetrieveOptions{})
			assert.NotNil(t, chunks)
			assert.Empty(t, chunks)
		})
	}
}

func TestRetrievalService_Retrieve(t *testing.T) {
	searcher := &mockSearcher{results: []domain.RetrievedChunk{hit("a", 0.8, "a.txt"), hit("b", 0.2, "b.txt")}}
	svc := NewRetrievalService(NewEmbeddingClient(&mockProvider{}), searcher)

	chunks := svc.Retrieve(context.Background(), "q", "alice",
		domain.RetrieveOptions{SimilarityThreshold: domain.ChatSimilarityThreshold})

	require.Len(t, chunks, 1)
	assert.Equal(t, "a", chunks[0].ID)
}

func TestFormatContext(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		text, ok := FormatContext(nil)
		assert.False(t, ok)
		assert.Empty(t, text)
	})

	t.Run("labels and separators", func(t *testing.T) {
		text, ok := FormatContext([]domain.RetrievedChunk{
			{Content: "First excerpt.", Metadata: map[string]any{domain.MetadataFilename: "guide.pdf"}},
			{Content: "Second excerpt."},
		})

		assert.True(t, ok)
		assert.Equal(t,
			"[Source 1: guide.pdf]\nFirst excerpt.\n\n---\n\n[Source 2: Unknown source]\nSecond excerpt.",
			text)
	})

	t.Run("service method delegates", func(t *testing.T) {
		svc := NewRetrievalService(nil, nil)
		text, ok := svc.FormatContext([]domain.RetrievedChunk{{Content: "x"}})
		assert.True(t, ok)
		assert.Equal(t, "[Source 1: Unknown source]\nx", text)
	})
}
