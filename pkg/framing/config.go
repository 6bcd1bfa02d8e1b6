// Package framing cuts HTTP/1.x byte streams into request frames the way one
// configurable intermediary would, including the non-conformant behaviours
// (alternate terminators, obs-fold, conflicting length headers, sloppy chunk
// grammar) that make two hops disagree about message boundaries.
//
// The engine is stateless. Anything that must survive between calls is
// returned as a *Remainder and handed back by the caller.
package framing

import (
	"bytes"
	"fmt"
	"maps"

	"github.com/waftester/desyncsim/pkg/defaults"
)

// Duplicates selects which of several matching headers decides a length.
type Duplicates string

const (
	// DuplicateFirst uses the first matching header's value.
	DuplicateFirst Duplicates = "first"
	// DuplicateLast uses the last matching header's value.
	DuplicateLast Duplicates = "last"
	// DuplicateError treats more than one match as a fatal ambiguity.
	DuplicateError Duplicates = "error"
)

// Valid returns true if d is a known duplicate policy
func (d Duplicates) Valid() bool {
	switch d {
	case DuplicateFirst, DuplicateLast, DuplicateError:
		return true
	default:
		return false
	}
}

// BodyEncoding is how a hop re-encodes the body it forwards.
type BodyEncoding string

const (
	BodyUnmodified    BodyEncoding = "unmodified"
	BodyChunked       BodyEncoding = "chunked"
	BodyContentLength BodyEncoding = "content-length"
)

// Valid returns true if b is a known body encoding
func (b BodyEncoding) Valid() bool {
	switch b {
	case BodyUnmodified, BodyChunked, BodyContentLength:
		return true
	default:
		return false
	}
}

// NoLengthPolicy decides the body length when no length rule matches.
// Real intermediaries disagree here, so it is configuration, not a guess.
type NoLengthPolicy string

const (
	// NoLengthZero assumes an empty body.
	NoLengthZero NoLengthPolicy = "zero"
	// NoLengthReject fails the frame with ErrMissingLength.
	NoLengthReject NoLengthPolicy = "reject"
	// NoLengthReadRemaining takes every buffered byte as the body.
	NoLengthReadRemaining NoLengthPolicy = "read-remaining"
)

// Valid returns true if p is a known policy
func (p NoLengthPolicy) Valid() bool {
	switch p {
	case NoLengthZero, NoLengthReject, NoLengthReadRemaining:
		return true
	default:
		return false
	}
}

// URLMode rewrites the request target before forwarding.
type URLMode string

const (
	URLNone   URLMode = "none"
	URLDecode URLMode = "decode"
	URLEncode URLMode = "encode"
)

// Valid returns true if m is a known URL mode
func (m URLMode) Valid() bool {
	switch m {
	case URLNone, URLDecode, URLEncode:
		return true
	default:
		return false
	}
}

// LengthRule maps a header name to body-length semantics.
type LengthRule struct {
	// Header is matched exactly and case-insensitively against the name
	// portion of each header line.
	Header string `json:"header" yaml:"header"`
	// Chunked makes the body length come from the chunked decoder.
	Chunked bool `json:"chunked,omitempty" yaml:"chunked,omitempty"`
	// Duplicates governs repeated matching headers.
	Duplicates Duplicates `json:"duplicates" yaml:"duplicates"`
	// Value, when set, restricts matches to headers whose value contains
	// this token (comma-separated list semantics, case-insensitive).
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	// TrimName tolerates whitespace around the header name.
	TrimName bool `json:"trim_name,omitempty" yaml:"trim_name,omitempty"`
}

// Hooks are the optional user transforms run while forwarding a frame.
type Hooks struct {
	HeaderLines   Hook
	RequestLine   Hook
	MessageLength Hook
}

// HopConfig is everything one intermediary needs to frame and forward.
// A configuration may be replaced between Frame calls but must not be
// mutated while one is running.
type HopConfig struct {
	Name string

	HeaderTerminators     [][]byte
	HeaderLineDelimiters  [][]byte
	AllowFolding          bool
	RequestLineDelimiters [][]byte
	ChunkLineDelimiters   [][]byte

	LengthRules []LengthRule
	NoLength    NoLengthPolicy

	DeleteHeaders []string
	AddHeaders    []string
	MethodRewrite map[string]string
	URLMode       URLMode
	ForceVersion  string

	OutputBodyEncoding BodyEncoding
	OutputLineEnding   []byte
	UnfoldOnForward    bool

	Hooks Hooks
}

// DefaultHopConfig returns an RFC 7230-flavoured hop: CRLF everywhere,
// Transfer-Encoding preferred over Content-Length, duplicate
// Content-Length rejected.
func DefaultHopConfig() *HopConfig {
	return &HopConfig{
		Name:                  "default",
		HeaderTerminators:     [][]byte{[]byte(defaults.CRLF + defaults.CRLF)},
		HeaderLineDelimiters:  [][]byte{[]byte(defaults.CRLF)},
		RequestLineDelimiters: [][]byte{[]byte(" ")},
		ChunkLineDelimiters:   [][]byte{[]byte(defaults.CRLF)},
		LengthRules: []LengthRule{
			{Header: "Transfer-Encoding", Chunked: true, Duplicates: DuplicateLast},
			{Header: "Content-Length", Duplicates: DuplicateError},
		},
		NoLength:           NoLengthZero,
		URLMode:            URLNone,
		OutputBodyEncoding: BodyUnmodified,
		OutputLineEnding:   []byte(defaults.CRLF),
	}
}

// Clone returns a deep copy so a hop can be re-tuned without touching a
// configuration another stream may be using.
func (c *HopConfig) Clone() *HopConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.HeaderTerminators = cloneSeqs(c.HeaderTerminators)
	out.HeaderLineDelimiters = cloneSeqs(c.HeaderLineDelimiters)
	out.RequestLineDelimiters = cloneSeqs(c.RequestLineDelimiters)
	out.ChunkLineDelimiters = cloneSeqs(c.ChunkLineDelimiters)
	out.LengthRules = append([]LengthRule(nil), c.LengthRules...)
	out.DeleteHeaders = append([]string(nil), c.DeleteHeaders...)
	out.AddHeaders = append([]string(nil), c.AddHeaders...)
	out.MethodRewrite = maps.Clone(c.MethodRewrite)
	out.OutputLineEnding = bytes.Clone(c.OutputLineEnding)
	return &out
}

func cloneSeqs(in [][]byte) [][]byte {
	if in == nil {
		return nil
	}
	out := make([][]byte, len(in))
	for i, s := range in {
		out[i] = bytes.Clone(s)
	}
	return out
}

// Validate checks the configuration is runnable. Errors wrap ErrInvalidConfig.
func (c *HopConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil configuration", ErrInvalidConfig)
	}
	seqs := []struct {
		field string
		vals  [][]byte
	}{
		{"header_terminators", c.HeaderTerminators},
		{"header_line_delimiters", c.HeaderLineDelimiters},
		{"request_line_delimiters", c.RequestLineDelimiters},
		{"chunk_line_delimiters", c.ChunkLineDelimiters},
	}
	for _, s := range seqs {
		if len(s.vals) == 0 {
			return fmt.Errorf("%w: %s: at least one sequence required", ErrInvalidConfig, s.field)
		}
		for i, v := range s.vals {
			if len(v) == 0 {
				return fmt.Errorf("%w: %s[%d]: empty sequence", ErrInvalidConfig, s.field, i)
			}
		}
	}
	if len(c.OutputLineEnding) == 0 {
		return fmt.Errorf("%w: output_line_ending: empty sequence", ErrInvalidConfig)
	}
	for i, r := range c.LengthRules {
		if r.Header == "" {
			return fmt.Errorf("%w: body_length_rules[%d]: empty header name", ErrInvalidConfig, i)
		}
		if !r.Duplicates.Valid() {
			return fmt.Errorf("%w: body_length_rules[%d]: unknown duplicate handling %q", ErrInvalidConfig, i, r.Duplicates)
		}
	}
	if !c.NoLength.Valid() {
		return fmt.Errorf("%w: unknown no-length policy %q", ErrInvalidConfig, c.NoLength)
	}
	if !c.URLMode.Valid() {
		return fmt.Errorf("%w: unknown url mode %q", ErrInvalidConfig, c.URLMode)
	}
	if !c.OutputBodyEncoding.Valid() {
		return fmt.Errorf("%w: unknown output body encoding %q", ErrInvalidConfig, c.OutputBodyEncoding)
	}
	return nil
}
