package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for runtime lookups. Callers compare with errors.Is.
var (
	// ErrTranslationNotFound means no translation exists in the requested
	// language nor in any language of the fallback chain. It is recoverable:
	// callers may fall back to the shared-only view.
	ErrTranslationNotFound = errors.New("translation not found")

	// ErrDoesNotExist is returned by Get when no row matches.
	ErrDoesNotExist = errors.New("object does not exist")

	// ErrMultipleResults is returned by Get when more than one row matches.
	ErrMultipleResults = errors.New("multiple objects returned")

	// ErrUnsaved is returned for operations that need a persisted instance.
	ErrUnsaved = errors.New("instance has not been saved")

	// ErrTableNotFound is returned by adapters when metadata is requested
	// for a table the target does not have.
	ErrTableNotFound = errors.New("table not found")
)

// DefinitionError reports an invalid entity definition or an invalid field
// path. It is raised at schema-build time (or query-construction time for
// paths) and is never recoverable at runtime.
type DefinitionError struct {
	Entity string
	Field  string
	Reason string
}

func (e *DefinitionError) Error() string {
	var b strings.Builder
	b.WriteString("definition error")
	if e.Entity != "" {
		b.WriteString(" in ")
		b.WriteString(e.Entity)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %q)", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// Definitionf builds a DefinitionError with a formatted reason.
func Definitionf(entity, field, format string, args ...any) *DefinitionError {
	return &DefinitionError{Entity: entity, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsDefinitionError reports whether err is (or wraps) a DefinitionError.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

// ConstraintViolation reports a (entity, language) uniqueness conflict that
// survived the single update-and-retry of a translation upsert.
type ConstraintViolation struct {
	Table    string
	MasterID int64
	Language string
	Err      error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation on %s (master_id=%d, language_code=%s): %v",
		e.Table, e.MasterID, e.Language, e.Err)
}

func (e *ConstraintViolation) Unwrap() error {
	return e.Err
}
