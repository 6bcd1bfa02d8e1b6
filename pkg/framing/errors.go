package framing

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for framing outcomes.
// Callers should use errors.Is() to check for these.
var (
	// ErrNeedMoreData is not a failure: the buffer ends before the current
	// message does. Supplying more bytes always makes progress.
	ErrNeedMoreData = errors.New("framing: need more data")

	// ErrAmbiguousLength indicates a length rule with duplicate handling
	// "error" matched more than one header. This is often the finding.
	ErrAmbiguousLength = errors.New("framing: ambiguous message length")

	// ErrInvalidLength indicates a fixed-length header whose value is not a
	// non-negative decimal integer.
	ErrInvalidLength = errors.New("framing: invalid message length")

	// ErrMissingLength indicates no length rule matched and the hop's
	// no-length policy is "reject".
	ErrMissingLength = errors.New("framing: no message length")

	// ErrMalformedChunk indicates the chunked body grammar was violated.
	ErrMalformedChunk = errors.New("framing: malformed chunk")

	// ErrScriptFailure indicates a user hook failed, panicked or timed out.
	// The engine never returns it from Frame; it is reported to observers.
	ErrScriptFailure = errors.New("framing: script hook failed")

	// ErrInvalidConfig indicates a hop configuration the engine cannot run.
	ErrInvalidConfig = errors.New("framing: invalid hop configuration")
)

// AmbiguousLengthError reports every value seen for the ambiguous header.
type AmbiguousLengthError struct {
	Header string
	Values []string
}

func (e *AmbiguousLengthError) Error() string {
	return fmt.Sprintf("framing: ambiguous message length: %d %q headers (%s)",
		len(e.Values), e.Header, strings.Join(e.Values, ", "))
}

func (e *AmbiguousLengthError) Unwrap() error { return ErrAmbiguousLength }

// InvalidLengthError reports the header that carried an unusable length.
type InvalidLengthError struct {
	Header string
	Value  string
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("framing: invalid message length: %s: %q", e.Header, e.Value)
}

func (e *InvalidLengthError) Unwrap() error { return ErrInvalidLength }

// MalformedChunkError pinpoints where the chunked grammar broke. Offset is
// relative to the buffer handed to ScanChunked.
type MalformedChunkError struct {
	Offset int
	Reason string
}

func (e *MalformedChunkError) Error() string {
	return fmt.Sprintf("framing: malformed chunk at offset %d: %s", e.Offset, e.Reason)
}

func (e *MalformedChunkError) Unwrap() error { return ErrMalformedChunk }

// HookError wraps the underlying cause of a script hook failure.
type HookError struct {
	Hook string
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("framing: %s hook: %v", e.Hook, e.Err)
}

func (e *HookError) Unwrap() []error { return []error{ErrScriptFailure, e.Err} }
