package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentStatus is the ingestion state of a document.
type DocumentStatus string

// Document lifecycle: pending -> processing -> completed | failed.
const (
	// DocumentStatusPending means the document is uploaded but not ingested.
	DocumentStatusPending DocumentStatus = "pending"

	// DocumentStatusProcessing means an ingestion run is in flight.
	DocumentStatusProcessing DocumentStatus = "processing"

	// DocumentStatusCompleted means every chunk was embedded and stored.
	DocumentStatusCompleted DocumentStatus = "completed"

	// DocumentStatusFailed means the last ingestion run failed.
	// ChunkCount and stored chunks must not be trusted.
	DocumentStatusFailed DocumentStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusCompleted, DocumentStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once a run has finished, successfully or not.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Document is an uploaded file tracked through ingestion.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// OwnerID scopes the document and all of its chunks.
	OwnerID string

	// Filename is the original name of the uploaded file.
	Filename string

	// StoragePath locates the raw bytes in the blob store.
	StoragePath string

	// Status is the current ingestion state.
	Status DocumentStatus

	// ChunkCount is the number of chunks stored by the last successful run.
	ChunkCount int

	// ErrorMessage holds the failure reason when Status is failed.
	ErrorMessage string

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time

	// UpdatedAt is when the document record last changed.
	UpdatedAt time.Time
}

// Extension returns the lower-cased file extension, including the dot.
func (d *Document) Extension() string {
	return strings.ToLower(filepath.Ext(d.Filename))
}

// ChunkOffsets are character positions into the normalised source text.
// EndChar is exclusive.
type ChunkOffsets struct {
	StartChar int
	EndChar   int
}

// TextChunk is a fragment produced by the chunker for one ingestion run.
type TextChunk struct {
	// Content is the trimmed, non-empty chunk text.
	Content string

	// Index is the zero-based position among the chunks of one text.
	Index int

	// Offsets describe the untrimmed window the content was cut from.
	Offsets ChunkOffsets
}

// Embedding is a fixed-length vector produced by an embedding model.
type Embedding []float32

// Chunk metadata keys written on every persisted chunk.
const (
	MetadataStartChar = "start_char"
	MetadataEndChar   = "end_char"
	MetadataFilename  = "filename"
)

// PersistedChunk is a chunk stored with its embedding.
type PersistedChunk struct {
	ID         string
	DocumentID string
	OwnerID    string
	Content    string
	Embedding  Embedding
	ChunkIndex int

	// Metadata carries start_char, end_char and filename.
	Metadata map[string]any
}

// RetrievedChunk is a similarity search hit. Higher Similarity is more relevant.
type RetrievedChunk struct {
	ID         string
	DocumentID string
	Content    string
	Metadata   map[string]any
	Similarity float64
}

// Filename returns the source filename recorded in metadata, or "" if absent.
func (c RetrievedChunk) Filename() string {
	if c.Metadata == nil {
		return ""
	}
	name, _ := c.Metadata[MetadataFilename].(string)
	return name
}

// MaxUploadSize is the largest accepted upload in bytes.
const MaxUploadSize = 10 * 1024 * 1024

// SupportedExtensions lists the file types that can be ingested.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".json", ".csv", ".pdf"}
}

// IsSupportedExtension reports whether ext (with dot, any case) can be ingested.
func IsSupportedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}
