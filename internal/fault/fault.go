// Package fault classifies tool errors so the protocol layer can decide how
// to surface them without inspecting message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a tool failure.
type Kind string

const (
	// KindValidation marks bad caller input (out-of-range top_k, malformed
	// table name).
	KindValidation Kind = "VALIDATION"

	// KindNotFound marks an absent object, key, or table.
	KindNotFound Kind = "NOT_FOUND"

	// KindSizeLimit marks content whose reported size exceeds the caller's
	// limit. Raised before any download happens.
	KindSizeLimit Kind = "SIZE_LIMIT"

	// KindNotText marks content the text heuristics refused to classify as
	// text.
	KindNotText Kind = "NOT_TEXT"

	// KindDecode marks content bytes that are not valid UTF-8.
	KindDecode Kind = "DECODE"

	// KindBackend marks a store, catalog, or connection failure.
	KindBackend Kind = "BACKEND"

	// KindConflict marks a resource already held or owned. Bucket creation
	// treats an owned-by-caller conflict as success; the manifest lock does
	// not.
	KindConflict Kind = "CONFLICT"
)

// Fault is an error with a Kind. The wrapped cause, when present, is
// reachable through errors.Unwrap.
type Fault struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Fault) Unwrap() error { return f.Err }

// New creates a Fault of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and context message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the Kind of err, unwrapping as needed. Errors that carry no
// Fault classify as KindBackend, the conservative default for anything that
// escaped a backend call.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindBackend
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == kind
}
