package driven

import "context"

// ExtractorRegistry selects a TextExtractor by file extension.
type ExtractorRegistry interface {
	// Extract dispatches on ext. Unknown extensions return domain.ErrUnsupportedFormat.
	Extract(ctx context.Context, ext string, content []byte) (string, error)

	// Register adds an extractor to the registry.
	Register(extractor TextExtractor)

	// SupportedExtensions returns all extensions that can be extracted.
	SupportedExtensions() []string
}
