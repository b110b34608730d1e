package driven

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// ChunkWriter replaces the chunks stored for a document.
type ChunkWriter interface {
	// DeleteChunks removes every chunk belonging to the document.
	DeleteChunks(ctx context.Context, documentID string) error

	// InsertChunks stores a batch of chunks with their embeddings.
	InsertChunks(ctx context.Context, chunks []domain.PersistedChunk) error
}

// ChunkStore persists chunks.
type ChunkStore interface {
	ChunkWriter

	// CountChunks returns how many chunks are stored for the document.
	CountChunks(ctx context.Context, documentID string) (int, error)
}

// ChunkTransactor is implemented by chunk stores that can scope a chunk
// replacement in one transaction. If fn returns an error nothing it wrote
// is kept.
type ChunkTransactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, w ChunkWriter) error) error
}

// DimensionChecker is implemented by chunk stores whose vector index holds
// embeddings of one length only.
type DimensionChecker interface {
	// CheckDimensions returns domain.ErrConfiguration if vectors of length
	// dims cannot be stored next to those already indexed.
	CheckDimensions(ctx context.Context, dims int) error
}

// SimilaritySearcher runs an owner-scoped nearest-neighbour query.
type SimilaritySearcher interface {
	// SimilaritySearch returns at most limit chunks owned by ownerID,
	// ordered by descending similarity to query.
	SimilaritySearch(ctx context.Context, query []float32, ownerID string, limit int) ([]domain.RetrievedChunk, error)
}

// BlobStore holds raw uploaded bytes.
type BlobStore interface {
	// Upload writes content at path, replacing anything already there.
	Upload(ctx context.Context, path string, content []byte) error

	// Download reads the bytes stored at path.
	Download(ctx context.Context, path string) ([]byte, error)

	// Delete removes the bytes at path.
	Delete(ctx context.Context, path string) error
}
