// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	engine := framing.NewEngine(cfg, framing.WithHookTimeout(duration.HookTimeout))
//	ctx, cancel := context.WithTimeout(ctx, duration.TraceShutdown)
//
// DO NOT use hardcoded time.Duration values like `50 * time.Millisecond` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// SCRIPT HOOKS
// ============================================================================
//
// User scripts are untrusted. Every invocation runs under one of these
// deadlines and falls back to the unmodified input when it expires.
// ============================================================================

const (
	// HookTimeout bounds one framing hook invocation (250ms)
	HookTimeout = 250 * time.Millisecond

	// TagTimeout bounds one user placeholder tag invocation (250ms)
	TagTimeout = 250 * time.Millisecond

	// RouteTimeout bounds one script-evaluated routing decision (100ms)
	RouteTimeout = 100 * time.Millisecond

	// ScriptLoad bounds the top-level run of a script while loading it (2s)
	ScriptLoad = 2 * time.Second
)

// ============================================================================
// TELEMETRY
// ============================================================================

const (
	// TraceConnect is the timeout for creating the OTLP exporter (10s)
	TraceConnect = 10 * time.Second

	// TraceShutdown is the timeout for flushing spans on exit (5s)
	TraceShutdown = 5 * time.Second
)
