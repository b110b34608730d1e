package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// contextSeparator divides source blocks in formatted context.
const contextSeparator = "\n\n---\n\n"

// unknownSource labels chunks without a recorded filename.
const unknownSource = "Unknown source"

// RetrievalResult is the outcome of a search. Err is set when the search
// could not run, which keeps a failure distinct from an empty match.
type RetrievalResult struct {
	Chunks []domain.RetrievedChunk
	Err    error
}

// Failed returns true if the search could not run.
func (r RetrievalResult) Failed() bool {
	return r.Err != nil
}

// RetrievalService embeds queries and finds similar chunks for an owner.
type RetrievalService struct {
	embedder *EmbeddingClient
	searcher driven.SimilaritySearcher
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(embedder *EmbeddingClient, searcher driven.SimilaritySearcher) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		searcher: searcher,
	}
}

// Search embeds query, asks the store for the owner's nearest chunks and
// drops those below the similarity threshold. Store order is preserved.
func (s *RetrievalService) Search(
	ctx context.Context, query, ownerID string, opts domain.RetrieveOptions,
) RetrievalResult {
	opts = opts.WithDefaults()

	logger.Section("Retrieval")
	logger.Debug("Query: %q, owner: %s, match_count: %d, threshold: %.2f",
		query, ownerID, opts.MatchCount, opts.SimilarityThreshold)

	vector, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return RetrievalResult{Chunks: []domain.RetrievedChunk{}, Err: fmt.Errorf("embed query: %w", err)}
	}
	if len(vector) == 0 {
		logger.Debug("Empty query embedding, returning no results")
		return RetrievalResult{Chunks: []domain.RetrievedChunk{}}
	}

	candidates, err := s.searcher.SimilaritySearch(ctx, vector, ownerID, opts.MatchCount)
	if err != nil {
		return RetrievalResult{Chunks: []domain.RetrievedChunk{}, Err: fmt.Errorf("similarity search: %w", err)}
	}
	logger.Debug("Candidates: %d", len(candidates))

	kept := make([]domain.RetrievedChunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= opts.SimilarityThreshold {
			kept = append(kept, c)
		}
	}
	logger.Info("Retrieved %d chunks above threshold", len(kept))

	return RetrievalResult{Chunks: kept}
}

// Retrieve is Search for callers that only need chunks. Failures are logged
// and yield an empty slice.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query, ownerID string, opts domain.RetrieveOptions,
) []domain.RetrievedChunk {
	result := s.Search(ctx, query, ownerID, opts)
	if result.Failed() {
		logger.Warn("Retrieval failed, continuing without context: %v", result.Err)
	}
	return result.Chunks
}

// FormatContext renders chunks as numbered source blocks. It returns false
// when there are no chunks.
func (s *RetrievalService) FormatContext(chunks []domain.RetrievedChunk) (string, bool) {
	return FormatContext(chunks)
}

// FormatContext renders chunks as "[Source i: name]" blocks, numbered from 1
// and separated by horizontal rules.
func FormatContext(chunks []domain.RetrievedChunk) (string, bool) {
	if len(chunks) == 0 {
		return "", false
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		source := c.Filename()
		if source == "" {
			source = unknownSource
		}
		parts[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, source, c.Content)
	}

	return strings.Join(parts, contextSeparator), true
}
