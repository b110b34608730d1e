package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve_context tool.
type RetrieveInput struct {
	Query     string   `json:"query" jsonschema:"the question or text to find relevant excerpts for"`
	Limit     int      `json:"limit,omitempty" jsonschema:"maximum number of excerpts (default from settings)"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity between -1 and 1"`
}

// RetrieveOutput is the output schema for the retrieve_context tool.
type RetrieveOutput struct {
	Context      string        `json:"context"`
	HasContext   bool          `json:"has_context"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Chunks       []ChunkOutput `json:"chunks"`
}

// ChunkOutput is one retrieved excerpt.
type ChunkOutput struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename,omitempty"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content"`
}

// ProcessInput is the input schema for the process_document tool.
type ProcessInput struct {
	DocumentID string `json:"document_id" jsonschema:"ID of an uploaded document"`
}

// ProcessOutput reports the document after the run.
type ProcessOutput struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolRetrieveContext,
		Description: "Find the excerpts of the user's documents most relevant to a query",
	}, s.handleRetrieve)

	if s.ports.Document != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        ToolProcessDocument,
			Description: "Extract, chunk and embed an uploaded document so it becomes searchable",
		}, s.handleProcess)
	}
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	if input.Query == "" {
		return nil, RetrieveOutput{}, errors.New("query is required")
	}

	opts := s.ports.Defaults
	if input.Limit > 0 {
		opts.MatchCount = input.Limit
	}
	if input.Threshold != nil {
		opts.SimilarityThreshold = *input.Threshold
	}

	chunks := s.ports.Retrieval.Retrieve(ctx, input.Query, s.ports.OwnerID, opts.WithDefaults())
	formatted, ok := s.ports.Retrieval.FormatContext(chunks)

	output := RetrieveOutput{
		Context:    formatted,
		HasContext: ok,
		Chunks:     make([]ChunkOutput, len(chunks)),
	}
	for i, c := range chunks {
		output.Chunks[i] = ChunkOutput{
			DocumentID: c.DocumentID,
			Filename:   c.Filename(),
			Similarity: c.Similarity,
			Content:    c.Content,
		}
	}

	if s.ports.Prompts != nil {
		prompt, err := s.ports.Prompts.SystemPrompt(formatted, ok)
		if err != nil {
			return nil, RetrieveOutput{}, fmt.Errorf("building system prompt: %w", err)
		}
		output.SystemPrompt = prompt
	}

	return nil, output, nil
}

func (s *Server) handleProcess(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProcessInput,
) (*mcp.CallToolResult, ProcessOutput, error) {
	if input.DocumentID == "" {
		return nil, ProcessOutput{}, errors.New("document_id is required")
	}

	doc, err := s.ports.Document.Process(ctx, s.ports.OwnerID, input.DocumentID)
	if doc == nil {
		return nil, ProcessOutput{}, err
	}
	if err != nil && doc.Status != domain.DocumentStatusFailed {
		return nil, ProcessOutput{}, err
	}

	// A failed run is reported in the output rather than as a protocol error.
	return nil, ProcessOutput{
		DocumentID: doc.ID,
		Status:     doc.Status.String(),
		ChunkCount: doc.ChunkCount,
		Error:      doc.ErrorMessage,
		Retryable:  domain.IsRetryable(err),
	}, nil
}
