package mcp

import (
	"context"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

type mockRetrievalService struct {
	chunks    []domain.RetrievedChunk
	lastQuery string
	lastOwner string
	lastOpts  domain.RetrieveOptions
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context, query, ownerID string, opts domain.RetrieveOptions,
) []domain.RetrievedChunk {
	m.lastQuery = query
	m.lastOwner = ownerID
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
		parts[i] = c.Content
	}
	return strings.Join(parts, "|"), true
}

type mockDocumentService struct {
	docs       []domain.Document
	doc        *domain.Document
	err        error
	processErr error
	lastOwner  string
}

func (m *mockDocumentService) Upload(_ context.Context, ownerID, _ string, _ []byte) (*domain.Document, error) {
	m.lastOwner = ownerID
	return m.doc, m.err
}

func (m *mockDocumentService) List(_ context.Context, ownerID string) ([]domain.Document, error) {
	m.lastOwner = ownerID
	return m.docs, m.err
}

func (m *mockDocumentService) Get(_ context.Context, ownerID, _ string) (*domain.Document, error) {
	m.lastOwner = ownerID
	return m.doc, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, ownerID, _ string) error {
	m.lastOwner = ownerID
	return m.err
}

func (m *mockDocumentService) Replace(_ context.Context, ownerID, _ string, _ []byte) (*domain.Document, error) {
	m.lastOwner = ownerID
	return m.doc, m.err
}

func (m *mockDocumentService) Process(_ context.Context, ownerID, _ string) (*domain.Document, error) {
	m.lastOwner = ownerID
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, m.processErr
}

type mockPrompts struct {
	err error
}

func (m *mockPrompts) SystemPrompt(context string, ok bool) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if !ok {
		return "no context", nil
	}
	return "context: " + context, nil
}
