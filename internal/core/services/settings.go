package services

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyEmbedProvider    = "embedding.provider"
	KeyEmbedModel       = "embedding.model"
	KeyEmbedBaseURL     = "embedding.base_url"
	KeyEmbedAPIKey      = "embedding.api_key"
	KeyEmbedRPS         = "embedding.requests_per_second"
	KeyEmbedReferer     = "embedding.referer"
	KeyEmbedTitle       = "embedding.title"
	KeyEmbedKeepAlive   = "embedding.keep_alive"
	KeyChunkSize        = "chunker.chunk_size"
	KeyChunkOverlap     = "chunker.overlap"
	KeyBatchSize        = "pipeline.batch_size"
	KeyMatchCount       = "retrieval.match_count"
	KeySimilarity       = "retrieval.similarity_threshold"
	KeyStorageBackend   = "storage.backend"
	KeyStorageDSN       = "storage.dsn"
	KeyStorageRedisAddr = "storage.redis_addr"
	KeyStorageBlobDir   = "storage.blob_dir"
	KeyOwnerID          = "owner.id"
)

const (
	settingKindString   = "string"
	settingKindInt      = "int"
	settingKindFloat    = "float"
	settingKindCosine   = "cosine"
	settingKindProvider = "provider"
	settingKindBackend  = "backend"
)

// Environment fallbacks, usually populated from .env.
//
//nolint:gosec // G101: variable names, not credentials.
const (
	envOpenAIKey         = "OPENAI_API_KEY"
	envOpenRouterKey     = "OPENROUTER_API_KEY"
	envOpenRouterSiteURL = "OPENROUTER_SITE_URL"
	envOpenRouterAppName = "OPENROUTER_APP_NAME"
	envDatabaseURL       = "DOCRAG_DATABASE_URL"
	envRedisAddr         = "DOCRAG_REDIS_ADDR"
)

// settingKinds maps every recognised key to how its value is parsed.
var settingKinds = map[string]string{
	KeyEmbedProvider:    settingKindProvider,
	KeyEmbedModel:       settingKindString,
	KeyEmbedBaseURL:     settingKindString,
	KeyEmbedAPIKey:      settingKindString,
	KeyEmbedRPS:         settingKindFloat,
	KeyEmbedReferer:     settingKindString,
	KeyEmbedTitle:       settingKindString,
	KeyEmbedKeepAlive:   settingKindString,
	KeyChunkSize:        settingKindInt,
	KeyChunkOverlap:     settingKindInt,
	KeyBatchSize:        settingKindInt,
	KeyMatchCount:       settingKindInt,
	KeySimilarity:       settingKindCosine,
	KeyStorageBackend:   settingKindBackend,
	KeyStorageDSN:       settingKindString,
	KeyStorageRedisAddr: settingKindString,
	KeyStorageBlobDir:   settingKindString,
	KeyOwnerID:          settingKindString,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service that falls back to the
// process environment for credentials and connection strings.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// SetEnvLookup replaces the environment lookup. Intended for tests.
func (s *SettingsService) SetEnvLookup(lookup func(string) (string, bool)) {
	s.lookupEnv = lookup
}

// Get retrieves current application settings.
// Invalid stored values fall back to defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		OwnerID: s.getString(KeyOwnerID, defaults.OwnerID),
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(),
			Model:             s.configStore.GetString(KeyEmbedModel),
			BaseURL:           s.configStore.GetString(KeyEmbedBaseURL),
			APIKey:            s.configStore.GetString(KeyEmbedAPIKey),
			RequestsPerSecond: s.getFloat(KeyEmbedRPS, 0),
			Referer:           s.getStringEnv(KeyEmbedReferer, envOpenRouterSiteURL),
			Title:             s.getStringEnv(KeyEmbedTitle, envOpenRouterAppName),
			KeepAlive:         s.configStore.GetString(KeyEmbedKeepAlive),
		},
		Pipeline: domain.PipelineSettings{
			ChunkSize:    s.getInt(KeyChunkSize, defaults.Pipeline.ChunkSize),
			ChunkOverlap: s.getIntAllowZero(KeyChunkOverlap, defaults.Pipeline.ChunkOverlap),
			BatchSize:    s.getInt(KeyBatchSize, defaults.Pipeline.BatchSize),
		},
		Retrieval: domain.RetrievalSettings{
			MatchCount:          s.getInt(KeyMatchCount, defaults.Retrieval.MatchCount),
			SimilarityThreshold: s.getCosine(KeySimilarity, defaults.Retrieval.SimilarityThreshold),
		},
		Storage: domain.StorageSettings{
			Backend:   s.getBackend(defaults.Storage.Backend),
			DSN:       s.getStringEnv(KeyStorageDSN, envDatabaseURL),
			RedisAddr: s.getStringEnv(KeyStorageRedisAddr, envRedisAddr),
			BlobDir:   s.configStore.GetString(KeyStorageBlobDir),
		},
	}

	if settings.Embedding.APIKey == "" {
		switch settings.Embedding.Provider {
		case domain.AIProviderOpenAI:
			settings.Embedding.APIKey = s.env(envOpenAIKey)
		case domain.AIProviderOpenRouter:
			settings.Embedding.APIKey = s.env(envOpenRouterKey)
		}
	}

	return settings, nil
}

// Set parses value according to the key's type and stores it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)

	var parsed any
	switch kind {
	case settingKindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		parsed = n
	case settingKindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		parsed = f
	case settingKindCosine:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < -1 || f > 1 {
			return fmt.Errorf("%w: %s must be a number between -1 and 1", domain.ErrInvalidInput, key)
		}
		parsed = f
	case settingKindProvider:
		if !domain.AIProvider(value).IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, value)
		}
		parsed = value
	case settingKindBackend:
		if !domain.StorageBackend(value).IsValid() {
			return fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, value)
		}
		parsed = value
	default:
		parsed = value
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
// An empty model selects the provider default.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" && s.envKeyFor(provider) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}

	if err := s.configStore.Set(KeyEmbedProvider, provider.String()); err != nil {
		return fmt.Errorf("save embedding provider: %w", err)
	}
	if err := s.configStore.Set(KeyEmbedModel, model); err != nil {
		return fmt.Errorf("save embedding model: %w", err)
	}
	// A base URL set for another provider would point at the wrong service.
	if err := s.configStore.Set(KeyEmbedBaseURL, ""); err != nil {
		return fmt.Errorf("save embedding base_url: %w", err)
	}
	if apiKey != "" {
		if err := s.configStore.Set(KeyEmbedAPIKey, apiKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}

	return nil
}

// Validate checks the effective settings are usable for ingestion and retrieval.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("%w: embedding provider is not configured", domain.ErrConfiguration))
	}
	p := settings.Pipeline
	if p.ChunkSize <= 0 || p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		errs = append(errs, fmt.Errorf("%w: chunk_size=%d overlap=%d",
			domain.ErrInvalidChunkParams, p.ChunkSize, p.ChunkOverlap))
	}
	switch settings.Storage.Backend {
	case domain.StorageBackendPostgres:
		if settings.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("%w: postgres backend needs %s or %s",
				domain.ErrConfiguration, KeyStorageDSN, envDatabaseURL))
		}
	case domain.StorageBackendRedis:
		if settings.Storage.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("%w: redis backend needs %s or %s",
				domain.ErrConfiguration, KeyStorageRedisAddr, envRedisAddr))
		}
	}

	return errors.Join(errs...)
}

// Keys returns every recognised setting key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigPath returns the backing store's location.
func (s *SettingsService) ConfigPath() string {
	return s.configStore.Path()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) env(name string) string {
	if s.lookupEnv == nil {
		return ""
	}
	v, _ := s.lookupEnv(name)
	return strings.TrimSpace(v)
}

func (s *SettingsService) envKeyFor(provider domain.AIProvider) string {
	switch provider {
	case domain.AIProviderOpenAI:
		return s.env(envOpenAIKey)
	case domain.AIProviderOpenRouter:
		return s.env(envOpenRouterKey)
	default:
		return ""
	}
}

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getStringEnv(key, envName string) string {
	return s.getString(key, s.env(envName))
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats an explicit 0 as a value, not as missing.
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	val := s.configStore.GetInt(key)
	if val < 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	val := s.configStore.GetFloat(key)
	if val < 0 {
		return defaultVal
	}
	return val
}

// getCosine reads a cosine similarity, which may be negative. Values outside
// [-1, 1] fall back to the default.
func (s *SettingsService) getCosine(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	val := s.configStore.GetFloat(key)
	if val < -1 || val > 1 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getProvider() domain.AIProvider {
	p := domain.AIProvider(s.configStore.GetString(KeyEmbedProvider))
	if !p.IsValid() {
		return ""
	}
	return p
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	b := domain.StorageBackend(s.configStore.GetString(KeyStorageBackend))
	if !b.IsValid() {
		return defaultVal
	}
	return b
}
