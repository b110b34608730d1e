// Package ollama provides an embedding adapter using Ollama's native API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

var _ driven.EmbeddingProvider = (*EmbeddingService)(nil)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 60 * time.Second
)

// maxErrorBody caps how much of a failed response ends up in an error.
const maxErrorBody = 4 << 10

// Config holds configuration for the Ollama embedding service.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// KeepAlive controls how long Ollama keeps the model loaded after a
	// request, e.g. "10m". Empty leaves the server default.
	KeepAlive string
}

// EmbeddingService embeds batches through POST /api/embed.
type EmbeddingService struct {
	client    *http.Client
	baseURL   string
	model     string
	keepAlive string
}

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

// embedResponse carries one vector per input, in input order.
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &EmbeddingService{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		keepAlive: cfg.KeepAlive,
	}
}

// CreateEmbeddings embeds all texts in one request. Ollama answers
// positionally, so each vector is tagged with its position.
func (s *EmbeddingService) CreateEmbeddings(ctx context.Context, texts []string) ([]driven.IndexedEmbedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out embedResponse
	err := s.call(ctx, http.MethodPost, "/api/embed",
		embedRequest{Model: s.model, Input: texts, KeepAlive: s.keepAlive}, &out)
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama: %s", out.Error)
	}

	results := make([]driven.IndexedEmbedding, len(out.Embeddings))
	for i, values := range out.Embeddings {
		vector := make([]float32, len(values))
		for j, v := range values {
			vector[j] = float32(v)
		}
		results[i] = driven.IndexedEmbedding{Index: i, Vector: vector}
	}
	return results, nil
}

// ModelName returns the configured model.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists local models, which checks connectivity without loading one.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.call(ctx, http.MethodGet, "/api/tags", nil, nil)
}

// Close is a no-op.
func (s *EmbeddingService) Close() error {
	return nil
}

// call sends payload as JSON (if any) and decodes a 200 answer into out
// (if non-nil). Other statuses become errors carrying the response body.
func (s *EmbeddingService) call(ctx context.Context, method, endpoint string, payload, out any) error {
	body := io.Reader(http.NoBody)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ollama: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("ollama: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("ollama: %s returned status %d: %s",
			endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode response: %w", err)
	}
	return nil
}
