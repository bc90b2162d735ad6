package surreal

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/nfrund/collabhub/internal/domain"
)

// ErrNotConnected is returned when no healthy connection is available.
var ErrNotConnected = errors.New("database not connected")

// DBError is a store failure annotated with the operation and the
// SurrealQL statement that failed. Params are kept for debugging but only
// their names are printed, since they can carry message content.
type DBError struct {
	err     error
	context string
	query   string
	params  map[string]any
}

// NewDBError wraps err with the operation that was being performed.
func NewDBError(err error, context string) *DBError {
	return &DBError{err: err, context: context}
}

// WithQuery records the statement and its bound parameters.
func (e *DBError) WithQuery(query string, params map[string]any) *DBError {
	e.query = query
	e.params = params
	return e
}

// Params returns the bound parameters of the failed statement.
func (e *DBError) Params() map[string]any {
	return e.params
}

func (e *DBError) Error() string {
	var b strings.Builder
	b.WriteString(e.context)
	if e.query != "" {
		b.WriteString(" (Query: ")
		b.WriteString(e.query)
		if len(e.params) > 0 {
			names := slices.Sorted(maps.Keys(e.params))
			b.WriteString("; params: $")
			b.WriteString(strings.Join(names, ", $"))
		}
		b.WriteString(")")
	}
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *DBError) Unwrap() error {
	return e.err
}

// Is lets callers match driver failures against domain sentinels. Any
// error that is neither not-found nor invalid input counts as a
// persistence failure.
func (e *DBError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound, domain.ErrInvalidInput:
		return errors.Is(e.err, target)
	case domain.ErrPersistence:
		return !errors.Is(e.err, domain.ErrNotFound) && !errors.Is(e.err, domain.ErrInvalidInput)
	}
	return false
}
