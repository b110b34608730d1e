package driving

import "context"

// IngestionService turns a stored upload into embedded, persisted chunks.
type IngestionService interface {
	// ProcessDocument runs extraction, chunking, embedding and storage for one
	// document. Reprocessing replaces any chunks from earlier runs.
	//
	// The caller must already have moved the document to processing and must
	// not run two ingestions of the same document concurrently.
	ProcessDocument(ctx context.Context, documentID, ownerID string) error
}
