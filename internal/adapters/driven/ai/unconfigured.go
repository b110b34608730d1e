package ai

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure unconfiguredProvider implements the interface.
var _ driven.EmbeddingProvider = (*unconfiguredProvider)(nil)

// unconfiguredProvider stands in for a provider whose settings are incomplete.
// Every call reports domain.ErrConfiguration.
type unconfiguredProvider struct {
	model  string
	reason string
}

func newUnconfigured(model, reason string) *unconfiguredProvider {
	return &unconfiguredProvider{model: model, reason: reason}
}

func (p *unconfiguredProvider) err() error {
	return fmt.Errorf("%w: %s. Run 'docrag settings set embedding.provider <name>'", domain.ErrConfiguration, p.reason)
}

func (p *unconfiguredProvider) CreateEmbeddings(_ context.Context, _ []string) ([]driven.IndexedEmbedding, error) {
	return nil, p.err()
}

func (p *unconfiguredProvider) ModelName() string {
	return p.model
}

func (p *unconfiguredProvider) Ping(_ context.Context) error {
	return p.err()
}

func (p *unconfiguredProvider) Close() error {
	return nil
}
