package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docrag/internal/logger"
)

// Version is reported to clients in the initialize handshake.
const Version = "0.1.0"

// Tool names.
const (
	ToolRetrieveContext = "retrieve_context"
	ToolProcessDocument = "process_document"
)

// shutdownGrace bounds how long in-flight HTTP calls may finish after ctx ends.
const shutdownGrace = 5 * time.Second

// Server exposes one owner's documents to an assistant: retrieve_context
// always, process_document and the documents resources when a document
// service is configured.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer validates ports and registers the tools and resources they allow.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports}
	s.server = mcp.NewServer(
		&mcp.Implementation{Name: "docrag", Version: Version},
		&mcp.ServerOptions{Instructions: s.instructions()},
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// instructions tells the client when each tool is worth calling.
func (s *Server) instructions() string {
	var b strings.Builder
	b.WriteString("Call " + ToolRetrieveContext + " before answering questions about the user's documents; ")
	b.WriteString("ground the answer in the returned excerpts and cite them by source number.")
	if s.ports.Document != nil {
		b.WriteString(" A document listed with status pending or failed is not searchable until ")
		b.WriteString(ToolProcessDocument + " succeeds for it; retry only when the result says retryable.")
	}
	return b.String()
}

// Run speaks JSON-RPC over stdin and stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Debug("MCP server on stdio for owner %s", s.ports.OwnerID)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP listens on addr and serves the streamable HTTP transport.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles streamable HTTP sessions on ln. When ctx ends, in-flight
// calls get shutdownGrace to finish and Serve returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("MCP HTTP shutdown: %v", err)
		}
	}()

	logger.Debug("MCP server listening on %s", ln.Addr())
	err := httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
