package placeholder

import (
	"errors"
	"fmt"
)

// Sentinel errors for placeholder resolution.
// Callers should use errors.Is() to check for these.
var (
	// ErrValidation indicates a nesting or reference violation. The document
	// is returned unresolved.
	ErrValidation = errors.New("placeholder: invalid document")

	// ErrInvalidTag indicates a user tag name that is reserved or not an
	// identifier.
	ErrInvalidTag = errors.New("placeholder: invalid tag name")
)

// ValidationError pinpoints the offending tag for editor highlighting.
type ValidationError struct {
	Offset int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("placeholder: invalid document at offset %d: %s", e.Offset, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidf(offset int, format string, args ...any) error {
	return &ValidationError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
