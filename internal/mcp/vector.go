package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarryhq/quarry/internal/vector"
)

// PGVectorSearchInput drives the pgvector_search tool. EmbeddingOrText is
// dual-purpose: a JSON array of numbers is used as the query vector directly,
// anything else is embedded first.
type PGVectorSearchInput struct {
	EmbeddingOrText string `json:"embedding_or_text" jsonschema:"Search text, or a JSON array of numbers used directly as the query embedding"`
	TopK            int    `json:"top_k,omitempty" jsonschema:"Number of top results to return (default 5)"`
	Table           string `json:"table,omitempty" jsonschema:"Name of the vector table to search in"`
}

// registerVectorTools registers the vector search tool group.
func (s *Server) registerVectorTools() error {
	searchSchema, err := jsonschema.For[PGVectorSearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for pgvector_search: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pgvector_search",
		Description: "Vector similarity search over a pgvector table, ranked by cosine distance.",
		InputSchema: searchSchema,
	}, s.PGVectorSearch)

	return nil
}

// PGVectorSearch handles the pgvector_search MCP tool call.
func (s *Server) PGVectorSearch(ctx context.Context, _ *mcpsdk.CallToolRequest, in PGVectorSearchInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "pgvector_search")
	defer span.End()

	topK := in.TopK
	if topK == 0 {
		topK = vector.DefaultTopK
	}
	table := in.Table
	if table == "" {
		table = s.vectorTable
	}

	vec, isArray, err := vector.ParseEmbedding(in.EmbeddingOrText)
	if err != nil {
		span.RecordError(err)
		return faultResult(err), nil, nil
	}

	var hits []vector.Hit
	if isArray {
		hits, err = s.vector.SearchVector(ctx, vec, table, topK)
	} else {
		hits, err = s.vector.SearchText(ctx, in.EmbeddingOrText, table, topK)
	}
	if err != nil {
		span.RecordError(err)
		return faultResult(err), nil, nil
	}

	// An empty result is a valid empty JSON array, not null.
	if hits == nil {
		hits = []vector.Hit{}
	}
	return jsonResult(hits), nil, nil
}
