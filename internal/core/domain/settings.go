package domain

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderOpenRouter is the OpenRouter gateway, OpenAI-compatible.
	AIProviderOpenRouter AIProvider = "openrouter"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderLMStudio is a local LM Studio server, OpenAI-compatible.
	AIProviderLMStudio AIProvider = "lmstudio"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderOpenRouter, AIProviderOllama, AIProviderLMStudio:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderOpenRouter
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLMStudio
}

// IsOpenAICompatible returns true if the provider speaks the OpenAI embeddings API.
func (p AIProvider) IsOpenAICompatible() bool {
	return p == AIProviderOpenAI || p == AIProviderOpenRouter || p == AIProviderLMStudio
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderOpenRouter:
		return "OpenRouter (cloud gateway)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderLMStudio:
		return "LM Studio (local)"
	default:
		return unknownDescription
	}
}

// DefaultBaseURL returns the API endpoint used when none is configured.
func (p AIProvider) DefaultBaseURL() string {
	switch p {
	case AIProviderOpenAI:
		return "https://api.openai.com/v1"
	case AIProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	case AIProviderOllama:
		return "http://localhost:11434"
	case AIProviderLMStudio:
		return "http://localhost:1234/v1"
	default:
		return ""
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI and OpenRouter).
	APIKey string

	// RequestsPerSecond throttles calls to the provider. Zero disables throttling.
	RequestsPerSecond float64

	// Referer and Title are sent as OpenRouter attribution headers when set.
	Referer string
	Title   string

	// KeepAlive is how long Ollama keeps the model loaded, e.g. "10m".
	KeepAlive string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ResolvedModel returns the configured model or the provider default.
func (e EmbeddingSettings) ResolvedModel() string {
	if e.Model != "" {
		return e.Model
	}
	return DefaultEmbeddingModels()[e.Provider]
}

// ResolvedBaseURL returns the configured endpoint or the provider default.
func (e EmbeddingSettings) ResolvedBaseURL() string {
	if e.BaseURL != "" {
		return e.BaseURL
	}
	return e.Provider.DefaultBaseURL()
}

// PipelineSettings tunes the ingestion pipeline.
type PipelineSettings struct {
	// ChunkSize is the target chunk length in characters.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int

	// BatchSize is the number of chunks embedded and stored per batch.
	BatchSize int
}

// Defaults used when settings are absent.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultBatchSize    = 100
	DefaultMatchCount   = 5

	// DefaultSimilarityThreshold is the baseline retrieval cut-off.
	DefaultSimilarityThreshold = 0.5

	// ChatSimilarityThreshold trades precision for recall in conversational use.
	ChatSimilarityThreshold = 0.3

	// DefaultOwnerID scopes documents when no owner is configured.
	DefaultOwnerID = "local"
)

// RetrievalSettings holds retrieval defaults for callers.
type RetrievalSettings struct {
	MatchCount          int
	SimilarityThreshold float64
}

// StorageBackend selects the chunk and document store.
type StorageBackend string

// Available storage backends.
const (
	StorageBackendSQLite   StorageBackend = "sqlite"
	StorageBackendPostgres StorageBackend = "postgres"
	StorageBackendRedis    StorageBackend = "redis"
	StorageBackendMemory   StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageBackendSQLite, StorageBackendPostgres, StorageBackendRedis, StorageBackendMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// StorageSettings locates the stores.
type StorageSettings struct {
	// Backend selects where documents and chunks live.
	Backend StorageBackend

	// DSN is the Postgres connection string.
	DSN string

	// RedisAddr is host:port of a Redis Stack server.
	RedisAddr string

	// DataDir holds the SQLite database and, by default, uploaded blobs.
	DataDir string

	// BlobDir overrides where raw uploads are stored.
	BlobDir string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// OwnerID scopes every document, chunk and search.
	OwnerID string

	Embedding EmbeddingSettings
	Pipeline  PipelineSettings
	Retrieval RetrievalSettings
	Storage   StorageSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Embedding is left unconfigured; calls fail with ErrConfiguration until set.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		OwnerID:   DefaultOwnerID,
		Embedding: EmbeddingSettings{},
		Pipeline: PipelineSettings{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			BatchSize:    DefaultBatchSize,
		},
		Retrieval: RetrievalSettings{
			MatchCount:          DefaultMatchCount,
			SimilarityThreshold: DefaultSimilarityThreshold,
		},
		Storage: StorageSettings{
			Backend: StorageBackendSQLite,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOpenAI,
		AIProviderOpenRouter,
		AIProviderOllama,
		AIProviderLMStudio,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOpenAI:     "text-embedding-3-small",
		AIProviderOpenRouter: "openai/text-embedding-3-small",
		AIProviderOllama:     "nomic-embed-text",
		AIProviderLMStudio:   "text-embedding-nomic-embed-text-v1.5",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small":        1536,
		"text-embedding-3-large":        3072,
		"text-embedding-ada-002":        1536,
		"openai/text-embedding-3-small": 1536,
	}
}
