package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/backsync/internal/logger"
)

// DefaultVersion is reported when no version is configured.
const DefaultVersion = "dev"

// shutdownTimeout bounds the graceful shutdown of the HTTP transport.
const shutdownTimeout = 5 * time.Second

const instructions = `backsync keeps local object stores in sync with remote data services.
Use the fetch tool to import an entity from a source, then the objects tool
to read what was imported. The sources resource lists configured sources and
backsync://sources/{source}/history shows recent fetches.`

// Server exposes the synchronizer over the Model Context Protocol.
type Server struct {
	ports   *Ports
	version string
	log     *logger.Logger
	server  *mcp.Server
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Server) {
		s.log = logger.OrNop(log)
	}
}

// NewServer creates a server over ports.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports, version: DefaultVersion, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(
		&mcp.Implementation{Name: "backsync", Version: s.version},
		&mcp.ServerOptions{Instructions: instructions},
	)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Version returns the version reported to clients.
func (s *Server) Version() string {
	return s.version
}

// Serve runs the server until ctx is done. An empty addr serves JSON-RPC
// over stdio, anything else serves streamable HTTP on addr.
func (s *Server) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		s.log.Debug("mcp: serving over stdio")
		return s.server.Run(ctx, &mcp.StdioTransport{})
	}
	return s.serveHTTP(ctx, addr)
}

// Handler returns the streamable HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("mcp: shutting down http server: %v", err)
		}
	}()

	s.log.Info("mcp: listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
