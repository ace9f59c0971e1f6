package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/quarryhq/quarry/internal/fault"
	"github.com/quarryhq/quarry/internal/log"
)

// DefaultTable is the table pgvector_search targets when the caller names
// none.
const DefaultTable = "vector_table"

// DefaultTopK is the result count when the caller names none.
const DefaultTopK = 5

// identifierRE is the shape a search-target table name must have before it is
// interpolated into SQL. Anything else is rejected up front.
var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Field is one (column, value) pair of a result row.
type Field struct {
	Column string
	Value  any
}

// Row is an ordered list of fields preserving SELECT column order. Columns
// vary per target table, so rows carry their own shape.
type Row []Field

// MarshalJSON renders the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf strings.Builder
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Column)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')

		value, err := json.Marshal(f.Value)
		if err != nil {
			// Values pgx decodes into driver-specific types still need to
			// render; fall back to their string form.
			value, err = json.Marshal(fmt.Sprintf("%v", f.Value))
			if err != nil {
				return nil, err
			}
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return []byte(buf.String()), nil
}

// Hit is one ranked search result. Rank is the 1-based position in the
// result set; ties keep the underlying store order.
type Hit struct {
	Rank int `json:"rank"`
	Row  Row `json:"row"`
}

// Store performs nearest-neighbor searches against pgvector tables in one
// database. Connections are dialed per call and closed before returning,
// mirroring the relational tools.
type Store struct {
	connURL  string
	embedder Embedder
	logger   log.Logger
}

// NewStore creates a Store. The embedder may be nil if only SearchVector is
// used.
func NewStore(connURL string, embedder Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{connURL: connURL, embedder: embedder, logger: logger}
}

// SearchText embeds text and searches table for its topK nearest neighbors.
func (s *Store) SearchText(ctx context.Context, text, table string, topK int) ([]Hit, error) {
	if s.embedder == nil {
		return nil, fault.New(fault.KindValidation, "no embedding provider configured; pass a ready-made embedding instead")
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.SearchVector(ctx, vec, table, topK)
}

// SearchVector returns the topK rows of table nearest to vec, ranked by
// cosine distance. The distance operator must match the table's index;
// a mismatch is a backend fault, never a silent degradation.
//
// The table name is interpolated into the query text, so it is validated
// first: it must be a plain identifier and must exist in the public schema.
func (s *Store) SearchVector(ctx context.Context, vec []float32, table string, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, fault.New(fault.KindValidation, "top_k must be positive, got %d", topK)
	}
	if table == "" {
		table = DefaultTable
	}
	if !identifierRE.MatchString(table) {
		return nil, fault.New(fault.KindValidation, "invalid table name %q", table)
	}

	conn, err := pgx.Connect(ctx, s.connURL)
	if err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "connecting to database")
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			s.logger.Warn("closing connection", "error", closeErr)
		}
	}()

	if err := s.assertTableExists(ctx, conn, table); err != nil {
		return nil, err
	}
	if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "registering vector types")
	}

	sql := fmt.Sprintf(
		"SELECT * FROM %s ORDER BY embedding <=> $1::vector LIMIT $2",
		pgx.Identifier{"public", table}.Sanitize(),
	)

	rows, err := conn.Query(ctx, sql, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "searching table %q", table)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var hits []Hit
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fault.Wrap(fault.KindBackend, err, "reading result row")
		}

		row := make(Row, len(fields))
		for i, f := range fields {
			row[i] = Field{Column: f.Name, Value: plainValue(values[i])}
		}
		hits = append(hits, Hit{Rank: len(hits) + 1, Row: row})
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "searching table %q", table)
	}

	s.logger.Debug("vector search complete", "table", table, "top_k", topK, "hits", len(hits))
	return hits, nil
}

// assertTableExists checks the catalog before the table name is interpolated
// into SQL text.
func (s *Store) assertTableExists(ctx context.Context, conn *pgx.Conn, table string) error {
	var exists bool
	err := conn.QueryRow(ctx,
		`SELECT EXISTS (
            SELECT 1 FROM information_schema.tables
            WHERE table_schema = 'public' AND table_name = $1
        )`, table).Scan(&exists)
	if err != nil {
		return fault.Wrap(fault.KindBackend, err, "checking table %q", table)
	}
	if !exists {
		return fault.New(fault.KindNotFound, "table %q not found in schema public", table)
	}
	return nil
}

// plainValue converts driver-specific values into JSON-friendly ones.
func plainValue(v any) any {
	switch val := v.(type) {
	case pgvector.Vector:
		return val.Slice()
	case []byte:
		return string(val)
	default:
		return v
	}
}

// ParseEmbedding interprets s as a JSON array of numbers. The second return
// reports whether s looked like an array at all; malformed arrays fail with a
// validation fault.
func ParseEmbedding(s string) ([]float32, bool, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false, nil
	}

	var vec []float32
	if err := json.Unmarshal([]byte(trimmed), &vec); err != nil {
		return nil, true, fault.Wrap(fault.KindValidation, err, "parsing embedding array")
	}
	if len(vec) == 0 {
		return nil, true, fault.New(fault.KindValidation, "embedding array is empty")
	}
	return vec, true, nil
}
