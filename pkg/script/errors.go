package script

import "errors"

var (
	// ErrMissingEntry indicates the script lacks the entry point a caller needs.
	ErrMissingEntry = errors.New("script: missing entry point")

	// ErrBadResult indicates transform returned something other than a
	// string or bytes.
	ErrBadResult = errors.New("script: transform must return a string")
)
