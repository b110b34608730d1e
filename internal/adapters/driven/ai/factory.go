// Package ai provides factory functions for creating embedding provider adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/docrag/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docrag/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Placeholder keys that local OpenAI-compatible servers accept.
const lmStudioAPIKey = "lm-studio"

// CreateEmbeddingProvider creates the embedding provider selected by settings.
//
// It never fails: when settings are incomplete it returns a provider whose
// calls fail with domain.ErrConfiguration, so missing credentials surface only
// when an embedding is actually requested.
func CreateEmbeddingProvider(settings domain.EmbeddingSettings) driven.EmbeddingProvider {
	if !settings.Provider.IsValid() {
		return newUnconfigured(settings.ResolvedModel(),
			fmt.Sprintf("unknown embedding provider %q", settings.Provider))
	}
	if !settings.IsConfigured() {
		return newUnconfigured(settings.ResolvedModel(),
			fmt.Sprintf("%s requires an API key", settings.Provider))
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:   settings.ResolvedBaseURL(),
			Model:     settings.ResolvedModel(),
			KeepAlive: settings.KeepAlive,
		})

	case domain.AIProviderOpenRouter:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.ResolvedBaseURL(),
			Model:             settings.ResolvedModel(),
			Headers:           openRouterHeaders(settings),
			RequestsPerSecond: settings.RequestsPerSecond,
		})

	case domain.AIProviderLMStudio:
		key := settings.APIKey
		if key == "" {
			key = lmStudioAPIKey
		}
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            key,
			BaseURL:           settings.ResolvedBaseURL(),
			Model:             settings.ResolvedModel(),
			RequestsPerSecond: settings.RequestsPerSecond,
		})

	default:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.ResolvedBaseURL(),
			Model:             settings.ResolvedModel(),
			RequestsPerSecond: settings.RequestsPerSecond,
		})
	}
}

// openRouterHeaders returns the optional attribution headers OpenRouter reads.
func openRouterHeaders(settings domain.EmbeddingSettings) map[string]string {
	headers := make(map[string]string)
	if settings.Referer != "" {
		headers["HTTP-Referer"] = settings.Referer
	}
	if settings.Title != "" {
		headers["X-Title"] = settings.Title
	}
	return headers
}

// ValidateEmbeddingConfig creates a provider and pings it.
// This is intended for the settings commands to check credentials on configuration.
func ValidateEmbeddingConfig(ctx context.Context, settings domain.EmbeddingSettings) error {
	provider := CreateEmbeddingProvider(settings)
	defer provider.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := provider.Ping(ctx); err != nil {
		return fmt.Errorf("%w: service unreachable (%w). Run 'docrag settings set-key' or check embedding.base_url",
			domain.ErrEmbeddingFailure, err)
	}
	return nil
}
