// Package mcp exposes retrieval and document processing over the Model
// Context Protocol, so AI assistants can ground their answers in a user's
// uploaded documents.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// ErrMissingOwner is returned when no owner ID is configured.
var ErrMissingOwner = errors.New("mcp: owner ID is required")
