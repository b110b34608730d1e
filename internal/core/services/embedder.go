package services

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// EmbeddingClient turns texts into vectors through an EmbeddingProvider.
// It restores input order from the indices the provider returns and
// rejects responses that do not line up with the request.
type EmbeddingClient struct {
	provider   driven.EmbeddingProvider
	dimensions atomic.Int64
}

// NewEmbeddingClient creates a client backed by provider.
func NewEmbeddingClient(provider driven.EmbeddingProvider) *EmbeddingClient {
	return &EmbeddingClient{provider: provider}
}

// EmbedMany embeds texts in one provider request. The result has one vector
// per input, in input order. Empty input returns an empty result without
// calling the provider.
func (c *EmbeddingClient) EmbedMany(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return []domain.Embedding{}, nil
	}

	logger.Debug("Embedding %d texts with %s", len(texts), c.provider.ModelName())

	indexed, err := c.provider.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, wrapEmbeddingErr(err)
	}

	if len(indexed) != len(texts) {
		return nil, fmt.Errorf("%w: requested %d embeddings, received %d",
			domain.ErrEmbeddingFailure, len(texts), len(indexed))
	}

	sorted := make([]driven.IndexedEmbedding, len(indexed))
	copy(sorted, indexed)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	result := make([]domain.Embedding, len(sorted))
	dims := len(sorted[0].Vector)
	for i, e := range sorted {
		if e.Index != i {
			return nil, fmt.Errorf("%w: response indices are not 0..%d", domain.ErrEmbeddingFailure, len(texts)-1)
		}
		if len(e.Vector) == 0 || len(e.Vector) != dims {
			return nil, fmt.Errorf("%w: inconsistent embedding dimension at index %d (%d, expected %d)",
				domain.ErrEmbeddingFailure, i, len(e.Vector), dims)
		}
		result[i] = domain.Embedding(e.Vector)
	}

	c.dimensions.Store(int64(dims))
	return result, nil
}

// EmbedOne embeds a single text.
func (c *EmbeddingClient) EmbedOne(ctx context.Context, text string) (domain.Embedding, error) {
	vectors, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimensions returns the vector length of the last successful batch,
// or 0 before the first one.
func (c *EmbeddingClient) Dimensions() int {
	return int(c.dimensions.Load())
}

// ModelName returns the provider's model.
func (c *EmbeddingClient) ModelName() string {
	return c.provider.ModelName()
}

// wrapEmbeddingErr keeps configuration errors distinguishable while tagging
// every provider failure as an embedding failure.
func wrapEmbeddingErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
}
