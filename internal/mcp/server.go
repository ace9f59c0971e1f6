// Package mcp exposes the retrieval tools over the Model Context Protocol.
//
// The server registers twelve tools in three groups: object store
// (list_buckets, list_objects, get_object_metadata, search_objects,
// get_object_content), relational (query, list_schemas, list_tables,
// describe_table, get_foreign_keys, find_relationships), and vector search
// (pgvector_search).
//
// Error surfacing differs per group, on purpose. Object-store and vector
// failures become MCP error results carrying the fault kind and message.
// Relational tools fold every failure into their text result and never raise
// an error result; callers read those errors as ordinary content.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/quarryhq/quarry/internal/log"
	"github.com/quarryhq/quarry/internal/objstore"
	"github.com/quarryhq/quarry/internal/relational"
	"github.com/quarryhq/quarry/internal/vector"
)

// Server wraps the MCP SDK server and the tool backends.
type Server struct {
	mcpServer *mcpsdk.Server

	objects    *objstore.Client
	relational *relational.Tools
	vector     *vector.Store

	maxBuckets  int
	vectorTable string

	tracer trace.Tracer
	logger log.Logger
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string

	Objects    *objstore.Client
	Relational *relational.Tools
	Vector     *vector.Store

	// MaxBuckets caps the list_buckets result. Zero means
	// config.DefaultMaxBuckets is NOT applied here; callers pass their
	// configured value and zero is rejected.
	MaxBuckets int

	// VectorTable is the default pgvector_search target.
	VectorTable string

	Logger log.Logger
}

// NewServer creates the MCP server and registers all tools.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Objects == nil || cfg.Relational == nil || cfg.Vector == nil {
		return nil, fmt.Errorf("all tool backends are required")
	}
	if cfg.MaxBuckets < 1 {
		return nil, fmt.Errorf("max buckets must be at least 1, got %d", cfg.MaxBuckets)
	}
	if cfg.VectorTable == "" {
		cfg.VectorTable = vector.DefaultTable
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	s := &Server{
		mcpServer: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		objects:     cfg.Objects,
		relational:  cfg.Relational,
		vector:      cfg.Vector,
		maxBuckets:  cfg.MaxBuckets,
		vectorTable: cfg.VectorTable,
		tracer:      otel.Tracer("quarry/mcp"),
		logger:      cfg.Logger,
	}

	if err := s.registerObjectTools(); err != nil {
		return nil, fmt.Errorf("registering object tools: %w", err)
	}
	if err := s.registerRelationalTools(); err != nil {
		return nil, fmt.Errorf("registering relational tools: %w", err)
	}
	if err := s.registerVectorTools(); err != nil {
		return nil, fmt.Errorf("registering vector tools: %w", err)
	}

	return s, nil
}

// Run serves MCP on the given transport until ctx is canceled. Blocking.
func (s *Server) Run(ctx context.Context, transport mcpsdk.Transport) error {
	s.logger.Info("mcp server starting")
	return s.mcpServer.Run(ctx, transport)
}

// span opens a tracing span for one tool invocation. A no-op unless a global
// TracerProvider was installed at startup.
func (s *Server) span(ctx context.Context, tool string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "tool/"+tool)
}
