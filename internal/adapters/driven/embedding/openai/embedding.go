// Package openai provides an embedding adapter for OpenAI-compatible APIs.
// It serves OpenAI itself, OpenRouter and LM Studio.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

var _ driven.EmbeddingProvider = (*EmbeddingService)(nil)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

const maxErrorBody = 4 << 10

// Config holds configuration for the embedding service.
type Config struct {
	// APIKey is sent as a bearer token. Local servers accept any value.
	APIKey string

	BaseURL string
	Model   string
	Timeout time.Duration

	// Headers are added to every request, e.g. OpenRouter's HTTP-Referer and X-Title.
	Headers map[string]string

	// RequestsPerSecond throttles requests. Zero disables throttling.
	RequestsPerSecond float64
}

// APIError is a non-200 answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embeddings API returned status %d: %s", e.StatusCode, e.Message)
}

// EmbeddingService generates embeddings through the /embeddings endpoint.
type EmbeddingService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	headers map[string]string
	limiter *rate.Limiter
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// errorEnvelope is the {"error": {...}} body OpenAI-style servers send on failure.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewEmbeddingService creates a new embedding service.
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

	s := &EmbeddingService{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		headers: cfg.Headers,
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return s
}

// CreateEmbeddings embeds texts in one request. Results carry the index the
// API reported and keep the order they arrived in.
func (s *EmbeddingService) CreateEmbeddings(ctx context.Context, texts []string) ([]driven.IndexedEmbedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var out embeddingResponse
	if err := s.call(ctx, http.MethodPost, "/embeddings", embeddingRequest{Model: s.model, Input: texts}, &out); err != nil {
		return nil, err
	}

	results := make([]driven.IndexedEmbedding, len(out.Data))
	for i, d := range out.Data {
		vector := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vector[j] = float32(v)
		}
		results[i] = driven.IndexedEmbedding{Index: d.Index, Vector: vector}
	}
	return results, nil
}

// ModelName returns the configured model.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.call(ctx, http.MethodGet, "/models", nil, nil)
}

// Close is a no-op.
func (s *EmbeddingService) Close() error {
	return nil
}

func (s *EmbeddingService) call(ctx context.Context, method, endpoint string, payload, out any) error {
	body := io.Reader(http.NoBody)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readAPIError prefers the JSON error message and falls back to the raw body.
func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error != nil && env.Error.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}
