// Package chunker provides a boundary-aware text chunking processor.
package chunker

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// boundaryWindow is the fraction of a chunk searched backwards for a cut point.
const boundaryWindow = 0.8

// Processor splits text into overlapping chunks, preferring to cut at
// sentence ends, then at spaces, then mid-word.
// It implements the driven.Chunker interface.
type Processor struct {
	chunkSize int
	overlap   int
}

var _ driven.Chunker = (*Processor)(nil)

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a new chunker processor with the given options.
// Returns domain.ErrInvalidChunkParams unless size > 0 and 0 <= overlap < size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", domain.ErrInvalidChunkParams, p.chunkSize)
	}
	if p.overlap < 0 || p.overlap >= p.chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", domain.ErrInvalidChunkParams, p.overlap, p.chunkSize)
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Chunk splits text into chunks. Whitespace runs are collapsed to single
// spaces first; offsets index runes of that normalised text.
func (p *Processor) Chunk(text string) []domain.TextChunk {
	normalised := Normalise(text)
	if normalised == "" {
		return nil
	}

	runes := []rune(normalised)
	n := len(runes)

	estimated := n/(p.chunkSize-p.overlap) + 1
	chunks := make([]domain.TextChunk, 0, estimated)

	start := 0
	for start < n {
		end := start + p.chunkSize
		if end < n {
			end = p.findBreak(runes, start, end)
		} else {
			end = n
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, domain.TextChunk{
				Content: content,
				Index:   len(chunks),
				Offsets: domain.ChunkOffsets{StartChar: start, EndChar: end},
			})
		}

		next := end - p.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// findBreak searches backwards from end, stopping before
// start+floor(0.8*size), for a sentence end and then for a space.
// It returns end unchanged when neither is found.
func (p *Processor) findBreak(runes []rune, start, end int) int {
	floor := start + int(float64(p.chunkSize)*boundaryWindow)

	for i := end; i > floor; i-- {
		if isTerminator(runes[i-1]) && (i == len(runes) || runes[i] == ' ') {
			return i
		}
	}

	for i := end; i > floor; i-- {
		if i < len(runes) && runes[i] == ' ' {
			return i + 1
		}
	}

	return end
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Normalise collapses every whitespace run, newlines included, to one space
// and trims the result.
func Normalise(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
