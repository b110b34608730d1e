// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// IndexedEmbedding is one vector returned by a provider, tagged with the
// position of its input text in the request.
type IndexedEmbedding struct {
	Index  int
	Vector []float32
}

// EmbeddingProvider calls a remote embeddings API.
//
// Implementations may return results in any order; callers must use Index,
// never slice position, to associate a vector with its input.
//
// Implementations may include:
//   - OpenAI, OpenRouter and LM Studio (OpenAI-compatible /embeddings)
//   - Ollama (/api/embed)
type EmbeddingProvider interface {
	// CreateEmbeddings embeds all texts in a single request.
	// Any failure fails the whole request.
	CreateEmbeddings(ctx context.Context, texts []string) ([]IndexedEmbedding, error)

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
