// Package plaintext extracts text from UTF-8 encoded files.
package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.TextExtractor = (*Normaliser)(nil)

// utf8BOM is stripped from the start of decoded content.
const utf8BOM = "\ufeff"

// Normaliser handles plain text, markdown, JSON and CSV files.
// Content is decoded as UTF-8 and returned as-is.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedExtensions returns the extensions this normaliser handles.
func (n *Normaliser) SupportedExtensions() []string {
	return []string{".txt", ".md", ".json", ".csv"}
}

// Extract decodes content as UTF-8. Invalid UTF-8 is rejected.
// A nil or empty file yields empty text; the caller decides if that is an error.
func (n *Normaliser) Extract(_ context.Context, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", domain.ErrInvalidInput)
	}

	return strings.TrimPrefix(string(content), utf8BOM), nil
}
