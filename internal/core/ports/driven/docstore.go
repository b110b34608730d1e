package driven

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// DocumentStore persists document records.
// Lookups of unknown IDs return domain.ErrNotFound.
type DocumentStore interface {
	// CreateDocument stores a new document.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// UpdateDocument overwrites status, chunk count, error message and timestamps.
	UpdateDocument(ctx context.Context, doc *domain.Document) error

	// ListDocuments returns an owner's documents, newest first.
	ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error
}
