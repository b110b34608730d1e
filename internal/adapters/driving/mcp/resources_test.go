package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"valid document URI", "docrag://documents/doc-456", "doc-456"},
		{"invalid prefix", "file://documents/doc-456", ""},
		{"list URI", "docrag://documents", ""},
		{"nested path", "docrag://documents/a/b", ""},
		{"empty URI", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractDocumentID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleDocumentsResource(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("lists the owner's documents", func(t *testing.T) {
		docs := &mockDocumentService{docs: []domain.Document{
			{ID: "doc-2", Filename: "b.pdf", Status: domain.DocumentStatusPending, CreatedAt: created},
			{ID: "doc-1", Filename: "a.md", Status: domain.DocumentStatusCompleted, ChunkCount: 3, CreatedAt: created},
		}}
		server := newTestServer(t, &Ports{Retrieval: &mockRetrievalService{}, Document: docs})

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docrag://documents"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)

		var infos []documentInfo
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &infos))
		require.Len(t, infos, 2)
		assert.Equal(t, "doc-2", infos[0].ID)
		assert.Equal(t, 3, infos[1].ChunkCount)
		assert.Equal(t, "alice", docs.lastOwner)
	})

	t.Run("empty list is an empty array", func(t *testing.T) {
		server := newTestServer(t, &Ports{Retrieval: &mockRetrievalService{}, Document: &mockDocumentService{docs: []domain.Document{}}})

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docrag://documents"))

		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("store error", func(t *testing.T) {
		server := newTestServer(t, &Ports{Retrieval: &mockRetrievalService{}, Document: &mockDocumentService{err: errors.New("db down")}})

		_, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("docrag://documents"))
		assert.ErrorContains(t, err, "db down")
	})
}

func TestServer_handleDocumentResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns one document", func(t *testing.T) {
		docs := &mockDocumentService{doc: &domain.Document{
			ID: "doc-1", Filename: "a.md", Status: domain.DocumentStatusFailed, ErrorMessage: "boom",
		}}
		server := newTestServer(t, &Ports{Retrieval: &mockRetrievalService{}, Document: docs})

		result, err := server.handleDocumentResource(ctx, makeReadResourceRequest("docrag://documents/doc-1"))

		require.NoError(t, err)
		var info documentInfo
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &info))
		assert.Equal(t, "failed", info.Status)
		assert.Equal(t, "boom", info.Error)
	})

	t.Run("unknown document is not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{Retrieval: &mockRetrievalService{}, Document: &mockDocumentService{err: domain.ErrNotFound}})

		_, err := server.handleDocumentResource(ctx, makeReadResourceRequest("docrag://documents/nope"))
		assert.Error(t, err)
	})

	t.Run("malformed URI is not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{Retrieval: &mockRetrievalService{}, Document: &mockDocumentService{}})

		_, err := server.handleDocumentResource(ctx, makeReadResourceRequest("docrag://other"))
		assert.Error(t, err)
	})
}
