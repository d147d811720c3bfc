// Package shellmemerr defines the error taxonomy shared across the core:
// environment faults, store faults, input faults, and the template
// normaliser's "never fails" guarantee.
package shellmemerr

import "errors"

// Kind classifies an error for callers that need to choose an exit code
// without parsing messages.
type Kind int

const (
	// KindEnvironment covers missing HISTFILE, unreadable history files,
	// and unwritable data directories.
	KindEnvironment Kind = iota
	// KindStore covers migration failures, statement failures, and
	// constraint violations.
	KindStore
	// KindInput covers malformed time expressions and malformed patterns
	// supplied by a caller.
	KindInput
	// KindNotFound marks "nothing matched" — not a failure, but some
	// callers want to distinguish it from KindStore.
	KindNotFound
)

// Error wraps an underlying cause with a Kind so the CLI layer can map it
// to an exit code without string matching.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Detail + ": " + e.Err.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified Error.
func New(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

// ErrSchemaTooNew is returned when a store's schema_versions.version
// exceeds the build's CurrentSchemaVersion: an older binary opening a
// store a newer one wrote.
var ErrSchemaTooNew = errors.New("store schema is newer than this build supports")

// ErrUnsupportedFormat is returned by a history-file reader for a format
// it does not parse; historyfile.FishReader always returns it.
var ErrUnsupportedFormat = errors.New("unsupported shell history format")
