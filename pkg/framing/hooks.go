package framing

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Hook names as reported to observers and logs.
const (
	HookHeaderLines   = "header_lines"
	HookRequestLine   = "request_line"
	HookMessageLength = "message_length"
)

// Hook is a user transform over one substring of a frame. Implementations
// are untrusted: they may be slow, fail or panic.
type Hook interface {
	Apply(ctx context.Context, input []byte) ([]byte, error)
}

// HookFunc adapts a plain function to Hook.
type HookFunc func(ctx context.Context, input []byte) ([]byte, error)

// Apply calls f.
func (f HookFunc) Apply(ctx context.Context, input []byte) ([]byte, error) {
	return f(ctx, input)
}

// Observer receives framing events that are not errors of the frame itself.
type Observer interface {
	ScriptFailed(hop, hook string, err error)
}

type nopObserver struct{}

func (nopObserver) ScriptFailed(string, string, error) {}

// CallHook runs h with a deadline, containing errors and panics. The hook
// receives its own copy of input. On any failure the returned error wraps
// ErrScriptFailure and the caller should keep the original bytes.
func CallHook(ctx context.Context, timeout time.Duration, name string, h Hook, input []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	in := bytes.Clone(input)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out, err := h.Apply(ctx, in)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &HookError{Hook: name, Err: r.err}
		}
		return r.out, nil
	case <-ctx.Done():
		return nil, &HookError{Hook: name, Err: ctx.Err()}
	}
}

// runHook applies h and falls back to input on failure.
func (e *Engine) runHook(ctx context.Context, name string, h Hook, input []byte) []byte {
	if h == nil {
		return input
	}
	out, err := CallHook(ctx, e.hookTimeout, name, h, input)
	if err != nil {
		e.logger.Warn("script hook failed, passing input through",
			slog.String("hop", e.id),
			slog.String("hook", name),
			slog.String("error", err.Error()))
		e.observer.ScriptFailed(e.id, name, err)
		return input
	}
	return out
}
