package domain

import "errors"

// Domain errors represent business logic failures.
// Adapters wrap their own errors with these so callers can use errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates a file extension with no text extractor.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyContent indicates no text could be extracted, or chunking produced nothing.
	ErrEmptyContent = errors.New("no extractable content")

	// ErrEmbeddingFailure indicates the embedding provider failed for a batch.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrStorageFailure indicates a blob or record store operation failed.
	ErrStorageFailure = errors.New("storage failure")

	// ErrConfiguration indicates provider credentials or settings are missing.
	// It is raised only when an embedding call is attempted.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidChunkParams indicates chunk_size <= 0 or overlap outside [0, chunk_size).
	ErrInvalidChunkParams = errors.New("invalid chunk parameters")

	// ErrAlreadyProcessing indicates an ingestion run is already in flight for a document.
	ErrAlreadyProcessing = errors.New("document is already processing")

	// ErrFileTooLarge indicates an upload exceeds MaxUploadSize.
	ErrFileTooLarge = errors.New("file too large")
)

// IsRetryable reports whether a failed run may succeed if retried unchanged.
// Embedding and storage failures are transient unless caused by missing
// configuration.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConfiguration) {
		return false
	}
	return errors.Is(err, ErrEmbeddingFailure) || errors.Is(err, ErrStorageFailure)
}
