package cli

import (
	"bytes"
	"context"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

type mockDocumentService struct {
	docs       map[string]*domain.Document
	uploadErr  error
	processErr error
	deleted    []string
	processed  []string
	replaced   map[string][]byte
}

func newMockDocumentService() *mockDocumentService {
	return &mockDocumentService{
		docs:     make(map[string]*domain.Document),
		replaced: make(map[string][]byte),
	}
}

func (m *mockDocumentService) Upload(_ context.Context, ownerID, filename string, _ []byte) (*domain.Document, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	doc := &domain.Document{
		ID:        "doc-" + filename,
		OwnerID:   ownerID,
		Filename:  filename,
		Status:    domain.DocumentStatusPending,
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	m.docs[doc.ID] = doc
	return doc, nil
}

func (m *mockDocumentService) List(_ context.Context, _ string) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, *d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *mockDocumentService) Get(_ context.Context, _, id string) (*domain.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *mockDocumentService) Delete(_ context.Context, _, id string) error {
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockDocumentService) Replace(_ context.Context, _, id string, content []byte) (*domain.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.replaced[id] = content
	d.Status = domain.DocumentStatusPending
	return d, nil
}

func (m *mockDocumentService) Process(_ context.Context, _, id string) (*domain.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.processed = append(m.processed, id)
	if m.processErr != nil {
		d.Status = domain.DocumentStatusFailed
		d.ErrorMessage = m.processErr.Error()
		return d, m.processErr
	}
	d.Status = domain.DocumentStatusCompleted
	d.ChunkCount = 3
	return d, nil
}

type mockRetrievalService struct {
	chunks   []domain.RetrievedChunk
	lastOpts domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, _, _ string, opts domain.RetrieveOptions,
) []domain.RetrievedChunk {
	m.lastOpts = opts
	if m.chunks == nil {
		return []domain.RetrievedChunk{}
	}
	return m.chunks
}

func (m *mockRetrievalService) FormatContext(chunks []domain.RetrievedChunk) (string, bool) {
	if len(chunks) == 0 {
		return "", false
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = "[" + c.Filename() + "] " + c.Content
	}
	return strings.Join(parts, "\n"), true
}

type mockPrompts struct{}

func (mockPrompts) SystemPrompt(context string, ok bool) (string, error) {
	if !ok {
		return "SYSTEM", nil
	}
	return "SYSTEM\n" + context, nil
}

type mockSettingsService struct {
	settings    domain.AppSettings
	set         map[string]string
	setErr      error
	validateErr error
	provider    domain.AIProvider
	model       string
	apiKey      string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings(), set: make(map[string]string)}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.provider, m.model, m.apiKey = provider, model, apiKey
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) ConfigPath() string {
	return "/home/alice/.docrag/config.toml"
}

func (m *mockSettingsService) Keys() []string {
	return []string{"chunker.chunk_size", "embedding.provider"}
}

type testEnv struct {
	docs      *mockDocumentService
	retrieval *mockRetrievalService
	settings  *mockSettingsService
}

// setupTestServices injects mocks and restores package state on cleanup.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		docs:      newMockDocumentService(),
		retrieval: &mockRetrievalService{},
		settings:  newMockSettingsService(),
	}

	services = &Services{
		Documents: env.docs,
		Retrieval: env.retrieval,
		Prompts:   mockPrompts{},
		OwnerID:   "alice",
		Defaults:  domain.RetrieveOptions{MatchCount: 5, SimilarityThreshold: 0.5},
	}
	settingsService = env.settings

	t.Cleanup(func() {
		services = nil
		settingsService = nil
		buildSettings = nil
		buildServices = nil
		checkEmbedding = nil
		toolChecks = nil
		stdin = os.Stdin
		resetFlags(rootCmd)
	})
	return env
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag to its default so values do not leak
// between executions of the shared command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
