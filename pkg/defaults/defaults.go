// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for framing limits and tool identity.
//
// Usage:
//
//	if len(line) > defaults.MaxChunkLineLength {
//	resolver, err := placeholder.New(placeholder.WithMaxRepeat(defaults.MaxRepeat))
//
// DO NOT use hardcoded limits like `4096` in parsers.
// Instead, reference the appropriate constant from this package.
package defaults

// ToolName is used as the OpenTelemetry service name and in banners.
const ToolName = "desyncsim"

// Version is the current desyncsim version
const Version = "0.3.0"

// ============================================================================
// FRAMING LIMITS
// ============================================================================
//
// Bounds applied by the framing engine to attacker-controlled input so a
// malformed stream degrades into an error instead of unbounded buffering.
// ============================================================================

const (
	// MaxChunkLineLength is the longest unterminated chunk-size or trailer
	// line accepted before the chunk is declared malformed (4KB, matches net/http)
	MaxChunkLineLength = 4096

	// MaxChunkSizeDigits is the most hex digits a chunk size may carry (16)
	MaxChunkSizeDigits = 16

	// MaxHops is the deepest chain the runner will walk (64)
	MaxHops = 64
)

// ============================================================================
// PLACEHOLDER LIMITS
// ============================================================================

const (
	// MaxRepeat caps the bytes a single repeat tag may expand to (1MB)
	MaxRepeat = 1 << 20

	// MaxNesting caps block nesting depth in a placeholder document (256)
	MaxNesting = 256
)

// ============================================================================
// SCRIPT SANDBOX
// ============================================================================

const (
	// ScriptMaxAllocs bounds objects a tengo script may allocate per run
	ScriptMaxAllocs = 10_000_000

	// ScriptExtension is the file suffix LoadDir picks up
	ScriptExtension = ".tengo"
)

// ============================================================================
// WIRE DEFAULTS
// ============================================================================

const (
	// CRLF is the RFC 7230 line ending
	CRLF = "\r\n"

	// HTTP11 is the version string forced hops emit by default
	HTTP11 = "HTTP/1.1"
)
