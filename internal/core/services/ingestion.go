package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService runs a stored upload through extraction, chunking,
// embedding and storage, and records the outcome on the document.
type IngestionService struct {
	docStore   driven.DocumentStore
	chunkStore driven.ChunkStore
	blobStore  driven.BlobStore
	extractors driven.ExtractorRegistry
	chunker    driven.Chunker
	embedder   *EmbeddingClient
	batchSize  int
	now        func() time.Time
}

// NewIngestionService creates a new ingestion service.
// A batchSize of zero or less uses domain.DefaultBatchSize.
func NewIngestionService(
	docStore driven.DocumentStore,
	chunkStore driven.ChunkStore,
	blobStore driven.BlobStore,
	extractors driven.ExtractorRegistry,
	chunker driven.Chunker,
	embedder *EmbeddingClient,
	batchSize int,
) *IngestionService {
	if batchSize <= 0 {
		batchSize = domain.DefaultBatchSize
	}
	return &IngestionService{
		docStore:   docStore,
		chunkStore: chunkStore,
		blobStore:  blobStore,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// ProcessDocument ingests one document. A missing document returns
// domain.ErrNotFound and changes nothing. Any later failure marks the
// document failed with the error text and returns the error.
func (s *IngestionService) ProcessDocument(ctx context.Context, documentID, ownerID string) error {
	logger.Section("Ingestion")
	logger.Debug("Document: %s, owner: %s", documentID, ownerID)

	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	count, runErr := s.run(ctx, doc, ownerID)

	// Record the terminal status even if ctx was cancelled mid-run.
	final := context.WithoutCancel(ctx)
	if runErr != nil {
		logger.Error("Processing %s (%s) failed: %v", doc.Filename, doc.ID, runErr)
		doc.Status = domain.DocumentStatusFailed
		doc.ErrorMessage = runErr.Error()
		doc.UpdatedAt = s.now()
		if err := s.docStore.UpdateDocument(final, doc); err != nil {
			logger.Warn("Could not record failure for %s: %v", doc.ID, err)
		}
		return runErr
	}

	doc.Status = domain.DocumentStatusCompleted
	doc.ChunkCount = count
	doc.ErrorMessage = ""
	doc.UpdatedAt = s.now()
	if err := s.docStore.UpdateDocument(final, doc); err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}

	logger.Info("Processed %s: %d chunks", doc.Filename, count)
	return nil
}

// run executes download through storage and returns the stored chunk count.
func (s *IngestionService) run(ctx context.Context, doc *domain.Document, ownerID string) (int, error) {
	content, err := s.blobStore.Download(ctx, doc.StoragePath)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", doc.StoragePath, err)
	}
	logger.Debug("Downloaded %d bytes from %s", len(content), doc.StoragePath)

	text, err := s.extractors.Extract(ctx, doc.Extension(), content)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}

	text = Sanitise(text)
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: no text extracted from %s", domain.ErrEmptyContent, doc.Filename)
	}

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: chunking %s produced no chunks", domain.ErrEmptyContent, doc.Filename)
	}
	logger.Debug("Chunked into %d chunks with %s", len(chunks), s.chunker.Name())

	if tx, ok := s.chunkStore.(driven.ChunkTransactor); ok {
		logger.Debug("Replacing chunks in a transaction")
		var total int
		err := tx.WithinTx(ctx, func(ctx context.Context, w driven.ChunkWriter) error {
			var err error
			total, err = s.replaceChunks(ctx, w, doc, ownerID, chunks)
			return err
		})
		return total, err
	}

	return s.replaceChunks(ctx, s.chunkStore, doc, ownerID, chunks)
}

// replaceChunks deletes the document's old chunks, then embeds and inserts
// the new ones batch by batch.
func (s *IngestionService) replaceChunks(
	ctx context.Context,
	w driven.ChunkWriter,
	doc *domain.Document,
	ownerID string,
	chunks []domain.TextChunk,
) (int, error) {
	if err := w.DeleteChunks(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("delete previous chunks: %w", err)
	}

	total := 0
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := s.embedder.EmbedMany(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if start == 0 {
			if err := s.checkDimensions(ctx); err != nil {
				return 0, err
			}
		}

		records := make([]domain.PersistedChunk, len(batch))
		for i, c := range batch {
			records[i] = domain.PersistedChunk{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				OwnerID:    ownerID,
				Content:    c.Content,
				Embedding:  vectors[i],
				ChunkIndex: c.Index,
				Metadata: map[string]any{
					domain.MetadataStartChar: c.Offsets.StartChar,
					domain.MetadataEndChar:   c.Offsets.EndChar,
					domain.MetadataFilename:  doc.Filename,
				},
			}
		}

		if err := w.InsertChunks(ctx, records); err != nil {
			return total, fmt.Errorf("insert batch %d-%d: %w", start, end, err)
		}
		total += len(records)
		logger.Debug("Stored batch %d-%d (%d total)", start, end, total)
	}

	return total, nil
}

// checkDimensions asks stores with a fixed-size vector index whether the
// embedding model's output still fits it.
func (s *IngestionService) checkDimensions(ctx context.Context) error {
	checker, ok := s.chunkStore.(driven.DimensionChecker)
	if !ok {
		return nil
	}
	if err := checker.CheckDimensions(ctx, s.embedder.Dimensions()); err != nil {
		return fmt.Errorf("model %s: %w", s.embedder.ModelName(), err)
	}
	return nil
}
