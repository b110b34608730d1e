package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages an owner's uploads and drives their ingestion.
type DocumentService struct {
	docStore   driven.DocumentStore
	chunkStore driven.ChunkStore
	blobStore  driven.BlobStore
	ingestion  driving.IngestionService
	now        func() time.Time

	// mu guards the processing status transition so two callers cannot
	// start runs of the same document.
	mu sync.Mutex
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docStore driven.DocumentStore,
	chunkStore driven.ChunkStore,
	blobStore driven.BlobStore,
	ingestion driving.IngestionService,
) *DocumentService {
	return &DocumentService{
		docStore:   docStore,
		chunkStore: chunkStore,
		blobStore:  blobStore,
		ingestion:  ingestion,
		now:        time.Now,
	}
}

// Upload validates and stores the file, then creates a pending document.
// The blob is stored at <owner>/<uuid><ext>.
func (s *DocumentService) Upload(
	ctx context.Context, ownerID, filename string, content []byte,
) (*domain.Document, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !domain.IsSupportedExtension(ext) {
		return nil, fmt.Errorf("%w: %q (supported: %s)",
			domain.ErrUnsupportedFormat, ext, strings.Join(domain.SupportedExtensions(), ", "))
	}
	if len(content) > domain.MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit",
			domain.ErrFileTooLarge, len(content), domain.MaxUploadSize)
	}

	id := uuid.NewString()
	storagePath := path.Join(ownerID, id+ext)

	if err := s.blobStore.Upload(ctx, storagePath, content); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := s.now()
	doc := &domain.Document{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    filename,
		StoragePath: storagePath,
		Status:      domain.DocumentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.docStore.CreateDocument(ctx, doc); err != nil {
		// Leave no orphaned blob behind.
		if delErr := s.blobStore.Delete(ctx, storagePath); delErr != nil {
			logger.Warn("Could not remove blob %s: %v", storagePath, delErr)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	logger.Info("Uploaded %s as %s (%d bytes)", filename, id, len(content))
	return doc, nil
}

// List returns the owner's documents, newest first.
func (s *DocumentService) List(ctx context.Context, ownerID string) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx, ownerID)
}

// Get returns one of the owner's documents. Documents belonging to another
// owner are reported as not found.
func (s *DocumentService) Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

// Delete removes the stored file, the chunks and the document record.
// A missing file does not stop the rest of the deletion.
func (s *DocumentService) Delete(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.Get(ctx, ownerID, documentID)
	if err != nil {
		return err
	}

	if err := s.blobStore.Delete(ctx, doc.StoragePath); err != nil {
		logger.Warn("Could not delete blob %s: %v", doc.StoragePath, err)
	}

	if err := s.chunkStore.DeleteChunks(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	if err := s.docStore.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	logger.Info("Deleted %s (%s)", doc.Filename, doc.ID)
	return nil
}

// Replace overwrites the document's blob in place and resets it to pending.
// The extension and storage path are kept, so the old chunks stay
// searchable until the next Process swaps them out.
func (s *DocumentService) Replace(
	ctx context.Context, ownerID, documentID string, content []byte,
) (*domain.Document, error) {
	if len(content) > domain.MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit",
			domain.ErrFileTooLarge, len(content), domain.MaxUploadSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Get(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.DocumentStatusProcessing {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyProcessing, documentID)
	}

	if err := s.blobStore.Upload(ctx, doc.StoragePath, content); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	doc.Status = domain.DocumentStatusPending
	doc.ErrorMessage = ""
	doc.UpdatedAt = s.now()
	if err := s.docStore.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("reset document: %w", err)
	}

	logger.Info("Replaced %s (%s) with %d bytes", doc.Filename, doc.ID, len(content))
	return doc, nil
}

// Process marks the document processing and runs ingestion synchronously.
// It returns the document as recorded after the run. A pipeline failure is
// returned alongside the failed document.
func (s *DocumentService) Process(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	if err := s.claim(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	runErr := s.ingestion.ProcessDocument(ctx, documentID, ownerID)

	doc, err := s.docStore.GetDocument(context.WithoutCancel(ctx), documentID)
	if err != nil {
		return nil, errors.Join(runErr, fmt.Errorf("reload document: %w", err))
	}
	return doc, runErr
}

// claim moves a document to processing unless a run is already in flight.
func (s *DocumentService) claim(ctx context.Context, ownerID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Get(ctx, ownerID, documentID)
	if err != nil {
		return err
	}
	if doc.Status == domain.DocumentStatusProcessing {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyProcessing, documentID)
	}

	doc.Status = domain.DocumentStatusProcessing
	doc.ErrorMessage = ""
	doc.UpdatedAt = s.now()
	if err := s.docStore.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}
