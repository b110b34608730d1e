package normalisers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/normalisers/pdf"
	"github.com/custodia-labs/docrag/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry dispatches extraction on file extension.
// A later registration for the same extension replaces the earlier one.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]driven.TextExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]driven.TextExtractor)}
}

// NewDefaultRegistry returns a registry with the plaintext and PDF extractors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(pdf.New())
	return r
}

// Register adds an extractor for each of its extensions.
func (r *Registry) Register(extractor driven.TextExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range extractor.SupportedExtensions() {
		r.extractors[strings.ToLower(ext)] = extractor
	}
}

// Extract runs the extractor registered for ext.
func (r *Registry) Extract(ctx context.Context, ext string, content []byte) (string, error) {
	r.mu.RLock()
	extractor, ok := r.extractors[strings.ToLower(ext)]
	r.mu.RUnlock()

	if !ok {
		if ext == "" {
			ext = "(none)"
		}
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ext)
	}
	return extractor.Extract(ctx, content)
}

// SupportedExtensions returns all registered extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
