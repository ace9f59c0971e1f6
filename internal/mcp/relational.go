package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Relational tool inputs. All results are formatted text; failures are part
// of the text, never MCP error results.

// QueryInput carries a raw SQL statement with optional positional parameters.
type QueryInput struct {
	SQL        string `json:"sql" jsonschema:"SQL query to be executed"`
	Parameters []any  `json:"parameters,omitempty" jsonschema:"Positional query parameters"`
}

// ListSchemasInput has no parameters.
type ListSchemasInput struct{}

// ListTablesInput selects a schema.
type ListTablesInput struct {
	Schema string `json:"schema,omitempty" jsonschema:"The schema name to list tables (default public)"`
}

// TableInput names a table within a schema; shared by the per-table tools.
type TableInput struct {
	Table  string `json:"table" jsonschema:"The name of the table"`
	Schema string `json:"schema,omitempty" jsonschema:"The schema name (default public)"`
}

// registerRelationalTools registers the relational tool group.
func (s *Server) registerRelationalTools() error {
	querySchema, err := jsonschema.For[QueryInput](nil)
	if err != nil {
		return fmt.Errorf("schema for query: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "query",
		Description: "Execute a SQL query and return the results.",
		InputSchema: querySchema,
	}, s.Query)

	listSchemasSchema, err := jsonschema.For[ListSchemasInput](nil)
	if err != nil {
		return fmt.Errorf("schema for list_schemas: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_schemas",
		Description: "List all the schemas in the database.",
		InputSchema: listSchemasSchema,
	}, s.ListSchemas)

	listTablesSchema, err := jsonschema.For[ListTablesInput](nil)
	if err != nil {
		return fmt.Errorf("schema for list_tables: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_tables",
		Description: "List all tables in a specific schema.",
		InputSchema: listTablesSchema,
	}, s.ListTables)

	tableSchema, err := jsonschema.For[TableInput](nil)
	if err != nil {
		return fmt.Errorf("schema for table tools: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "describe_table",
		Description: "Get detailed column information about a table.",
		InputSchema: tableSchema,
	}, s.DescribeTable)
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_foreign_keys",
		Description: "Get foreign key information for a table.",
		InputSchema: tableSchema,
	}, s.GetForeignKeys)
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "find_relationships",
		Description: "Find both explicit and implied relationships for a table.",
		InputSchema: tableSchema,
	}, s.FindRelationships)

	return nil
}

// Query handles the query MCP tool call.
func (s *Server) Query(ctx context.Context, _ *mcpsdk.CallToolRequest, in QueryInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "query")
	defer span.End()

	return textResult(s.relational.Query(ctx, in.SQL, in.Parameters...)), nil, nil
}

// ListSchemas handles the list_schemas MCP tool call.
func (s *Server) ListSchemas(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListSchemasInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "list_schemas")
	defer span.End()

	return textResult(s.relational.ListSchemas(ctx)), nil, nil
}

// ListTables handles the list_tables MCP tool call.
func (s *Server) ListTables(ctx context.Context, _ *mcpsdk.CallToolRequest, in ListTablesInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "list_tables")
	defer span.End()

	return textResult(s.relational.ListTables(ctx, schemaOrPublic(in.Schema))), nil, nil
}

// DescribeTable handles the describe_table MCP tool call.
func (s *Server) DescribeTable(ctx context.Context, _ *mcpsdk.CallToolRequest, in TableInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "describe_table")
	defer span.End()

	return textResult(s.relational.DescribeTable(ctx, in.Table, schemaOrPublic(in.Schema))), nil, nil
}

// GetForeignKeys handles the get_foreign_keys MCP tool call.
func (s *Server) GetForeignKeys(ctx context.Context, _ *mcpsdk.CallToolRequest, in TableInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "get_foreign_keys")
	defer span.End()

	return textResult(s.relational.GetForeignKeys(ctx, in.Table, schemaOrPublic(in.Schema))), nil, nil
}

// FindRelationships handles the find_relationships MCP tool call.
func (s *Server) FindRelationships(ctx context.Context, _ *mcpsdk.CallToolRequest, in TableInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "find_relationships")
	defer span.End()

	return textResult(s.relational.FindRelationships(ctx, in.Table, schemaOrPublic(in.Schema))), nil, nil
}

func schemaOrPublic(schema string) string {
	if schema == "" {
		return "public"
	}
	return schema
}
