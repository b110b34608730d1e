package driven

import "github.com/custodia-labs/docrag/internal/core/domain"

// Chunker splits normalised text into overlapping, boundary-aware chunks.
type Chunker interface {
	// Name returns the chunker name for logging and configuration.
	Name() string

	// Chunk returns chunks with contiguous indices starting at zero.
	// Blank text yields no chunks and no error.
	Chunk(text string) []domain.TextChunk
}
