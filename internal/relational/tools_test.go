package relational

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/quarryhq/quarry/internal/log"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil is the NULL marker", nil, "NULL"},
		{"empty string stays empty", "", ""},
		{"string passes through", "hello", "hello"},
		{"integer", int64(42), "42"},
		{"bool", true, "true"},
		{"valid bytes decode", []byte("raw"), "raw"},
		{"invalid bytes replace", []byte{0x68, 0xff, 0x69}, "h�i"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.in); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatRow(t *testing.T) {
	got := formatRow(
		[]string{"id", "name", "deleted_at"},
		[]any{int64(7), "widget", nil},
	)
	want := "id: 7 | name: widget | deleted_at: NULL"
	if got != want {
		t.Errorf("formatRow() = %q, want %q", got, want)
	}
}

func TestQueryConnectionErrorIsAString(t *testing.T) {
	// Port 1 refuses immediately; the tool must fold the failure into its
	// result rather than return an error.
	tools := New("postgres://nobody@127.0.0.1:1/nothing", log.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := tools.Query(ctx, "SELECT 1")
	if !strings.HasPrefix(result, "Connection error: ") {
		t.Errorf("Query() = %q, want Connection error prefix", result)
	}
}
