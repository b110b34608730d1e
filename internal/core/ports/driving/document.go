package driving

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// DocumentService manages an owner's uploaded documents.
type DocumentService interface {
	// Upload stores the file and creates a pending document.
	Upload(ctx context.Context, ownerID, filename string, content []byte) (*domain.Document, error)

	// List returns the owner's documents, newest first.
	List(ctx context.Context, ownerID string) ([]domain.Document, error)

	// Get retrieves one of the owner's documents.
	Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error)

	// Delete removes the document, its chunks and its stored file.
	Delete(ctx context.Context, ownerID, documentID string) error

	// Replace overwrites the stored file of an existing document and resets
	// it to pending. Its chunks are replaced by the next Process.
	Replace(ctx context.Context, ownerID, documentID string, content []byte) (*domain.Document, error)

	// Process marks the document processing and ingests it.
	// Returns domain.ErrAlreadyProcessing if a run is already in flight.
	Process(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
}
