package driving

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// RetrievalService finds the chunks most relevant to a query.
type RetrievalService interface {
	// Retrieve never fails: embedding or search errors yield an empty slice.
	Retrieve(ctx context.Context, query, ownerID string, opts domain.RetrieveOptions) []domain.RetrievedChunk

	// FormatContext renders chunks as labelled source blocks.
	// It returns false when there is nothing to render.
	FormatContext(chunks []domain.RetrievedChunk) (string, bool)
}
