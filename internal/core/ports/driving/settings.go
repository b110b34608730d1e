package driving

import "github.com/custodia-labs/docrag/internal/core/domain"

// SettingsService reads and updates application settings.
type SettingsService interface {
	// Get returns the effective settings: stored values, then environment
	// fallbacks, then defaults.
	Get() (*domain.AppSettings, error)

	// Set validates and stores one setting by dotted key.
	Set(key, value string) error

	// SetEmbeddingProvider configures the embedding provider in one step.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// Validate checks the effective settings are usable.
	Validate() error

	// Keys returns every recognised setting key.
	Keys() []string

	// ConfigPath returns where settings are persisted, or "" if nowhere.
	ConfigPath() string
}
