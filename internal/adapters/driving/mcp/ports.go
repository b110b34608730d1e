package mcp

import (
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// PromptBuilder renders the system prompt for a formatted context.
type PromptBuilder interface {
	SystemPrompt(context string, ok bool) (string, error)
}

// Ports aggregates the services the MCP server drives.
type Ports struct {
	// Retrieval answers retrieve_context.
	Retrieval driving.RetrievalService

	// Document backs process_document and the documents resources. Optional.
	Document driving.DocumentService

	// Prompts adds a ready system prompt to retrieve_context output. Optional.
	Prompts PromptBuilder

	// OwnerID scopes every call the server makes.
	OwnerID string

	// Defaults fill unset tool arguments.
	Defaults domain.RetrieveOptions
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	if p.OwnerID == "" {
		return ErrMissingOwner
	}
	return nil
}
