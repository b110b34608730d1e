package driven

import "context"

// TextExtractor turns raw file bytes into plain text.
// Each extractor handles specific file extensions (e.g. .pdf, .md).
type TextExtractor interface {
	// SupportedExtensions returns the lower-case extensions, with dot, this extractor handles.
	SupportedExtensions() []string

	// Extract returns the text content of a file.
	Extract(ctx context.Context, content []byte) (string, error)
}
