package framing

import "fmt"

// Reason says why bytes were left unframed.
type Reason string

const (
	ReasonHeadersIncomplete Reason = "headers-incomplete"
	ReasonBodyIncomplete    Reason = "body-incomplete"
	// ReasonRejected marks bytes stuck behind a fatal framing error. Feeding
	// more data never unblocks them.
	ReasonRejected Reason = "rejected"
)

// MissingUnknown is Remainder.Missing when the shortfall cannot be known
// (headers still open, or a chunked body).
const MissingUnknown int64 = -1

// Remainder is the unframed tail of a stream for one hop. It must be
// supplied to the next Frame call for the same (stream, hop) and never
// shared between streams.
type Remainder struct {
	Raw     []byte
	Missing int64
	Reason  Reason
	Err     error
}

// Len returns the number of buffered bytes.
func (r *Remainder) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Raw)
}

// Recoverable reports whether more data can complete the message.
func (r *Remainder) Recoverable() bool {
	return r != nil && r.Reason != ReasonRejected
}

// Diagnostic renders a marker that tells "no data yet" apart from
// "malformed forever".
func (r *Remainder) Diagnostic() string {
	if r == nil {
		return ""
	}
	switch r.Reason {
	case ReasonHeadersIncomplete:
		return fmt.Sprintf("[incomplete headers: %d bytes buffered]", len(r.Raw))
	case ReasonBodyIncomplete:
		if r.Missing >= 0 {
			return fmt.Sprintf("[incomplete request: %d body bytes missing]", r.Missing)
		}
		return fmt.Sprintf("[incomplete request: chunked body open, %d bytes buffered]", len(r.Raw))
	case ReasonRejected:
		return fmt.Sprintf("[rejected: %v]", r.Err)
	default:
		return fmt.Sprintf("[pending: %d bytes]", len(r.Raw))
	}
}
