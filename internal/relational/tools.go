// Package relational exposes the relational introspection tools: raw query
// execution with uniform row formatting, catalog listings, explicit
// foreign-key extraction, and heuristic implied-relationship inference.
//
// Every operation returns a displayable string and never an error: failures
// are folded into the result text. Callers treating the tools as a black box
// always receive something they can show. The object-store and vector tools
// deliberately do not share this contract; agent prompts built against these
// tools read their errors as text.
package relational

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/quarryhq/quarry/internal/log"
)

const noResults = "No results found."

// Tools runs introspection queries against one PostgreSQL database.
//
// Connections are dialed fresh per call and closed before the call returns,
// error paths included. Nothing is pooled or cached: the catalog may change
// between calls, and concurrent callers each get their own connection.
type Tools struct {
	connURL string
	logger  log.Logger
}

// New creates Tools for the database at connURL.
func New(connURL string, logger log.Logger) *Tools {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Tools{connURL: connURL, logger: logger}
}

// Query executes sql with optional parameters and formats the outcome as
// text. Statements that return no row set yield a rows-affected message;
// empty results yield "No results found."; rows render one line each as
// "col: value | col: value" pairs in SELECT column order. NULL renders as the
// literal NULL, and byte values decode as UTF-8 with invalid sequences
// replaced. A row that cannot be read becomes an error marker line and
// iteration continues.
func (t *Tools) Query(ctx context.Context, sql string, params ...any) string {
	conn, err := pgx.Connect(ctx, t.connURL)
	if err != nil {
		return fmt.Sprintf("Connection error: %v", err)
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			t.logger.Warn("closing connection", "error", closeErr)
		}
	}()

	rows, err := conn.Query(ctx, sql, params...)
	if err != nil {
		return queryError(sql, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}

	var lines []string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			lines = append(lines, fmt.Sprintf("Error formatting row: %v", err))
			continue
		}
		lines = append(lines, formatRow(names, values))
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return queryError(sql, err)
	}

	// No row description means a DDL/DML statement.
	if len(fields) == 0 {
		return fmt.Sprintf("Query executed successfully, %d rows affected.", rows.CommandTag().RowsAffected())
	}
	if len(lines) == 0 {
		return noResults
	}
	return "Results:\n--------\n" + strings.Join(lines, "\n")
}

// ListSchemas lists every schema in the database.
func (t *Tools) ListSchemas(ctx context.Context) string {
	return t.Query(ctx, listSchemasSQL)
}

// ListTables lists the tables in schema.
func (t *Tools) ListTables(ctx context.Context, schema string) string {
	return t.Query(ctx, listTablesSQL, schema)
}

// DescribeTable lists the columns of schema.table in ordinal order.
func (t *Tools) DescribeTable(ctx context.Context, table, schema string) string {
	return t.Query(ctx, describeTableSQL, schema, table)
}

// GetForeignKeys lists the explicitly declared foreign keys of schema.table.
func (t *Tools) GetForeignKeys(ctx context.Context, table, schema string) string {
	return t.Query(ctx, foreignKeysSQL, schema, table)
}

// FindRelationships unions explicit foreign keys (confidence 1) with implied
// relationships inferred from column naming and type matches (confidence
// 2-5, lower is stronger). When neither leg finds anything, a single
// "no relationships" line replaces the two empty sections.
func (t *Tools) FindRelationships(ctx context.Context, table, schema string) string {
	explicit := t.Query(ctx, explicitRelationshipsSQL, schema, table)
	implied := t.Query(ctx, impliedRelationshipsSQL, schema, table, schema, table)

	if explicit == noResults && implied == noResults {
		return "No relationships found for this table"
	}
	return fmt.Sprintf("Explicit Foreign Keys:\n%s\n\nImplied Relationships:\n%s", explicit, implied)
}

func queryError(sql string, err error) string {
	return fmt.Sprintf("Error running query \n\"%s\"\n\n %v", sql, err)
}

func formatRow(names []string, values []any) string {
	items := make([]string, len(names))
	for i, name := range names {
		items[i] = name + ": " + formatValue(values[i])
	}
	return strings.Join(items, " | ")
}

// formatValue renders one column value. NULL is a literal marker distinct
// from the empty string; binary values decode lossily so a bytea column never
// breaks the whole listing.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return strings.ToValidUTF8(string(val), "�")
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
