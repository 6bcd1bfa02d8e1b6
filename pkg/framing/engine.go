package framing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/waftester/desyncsim/pkg/duration"
)

// Engine frames byte streams for one hop. It holds no per-stream state and
// is safe for concurrent use as long as each stream threads its own
// Remainder.
type Engine struct {
	cfg         *HopConfig
	id          string
	logger      *slog.Logger
	observer    Observer
	hookTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithID sets the hop ID reported to the logger and the Observer.
// Defaults to the configuration's Name, which is otherwise display only.
func WithID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.id = id
		}
	}
}

// WithObserver registers a receiver for script failures.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithHookTimeout bounds every hook invocation.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.hookTimeout = d
		}
	}
}

// NewEngine validates cfg and returns an engine for it.
func NewEngine(cfg *HopConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:         cfg,
		logger:      slog.Default(),
		observer:    nopObserver{},
		hookTimeout: duration.HookTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.id == "" {
		e.id = cfg.Name
	}
	return e, nil
}

// Config returns the hop configuration the engine runs.
func (e *Engine) Config() *HopConfig { return e.cfg }

// ID returns the hop ID used in logs and observer events.
func (e *Engine) ID() string { return e.id }

// Frame cuts prior.Raw+data into complete frames. Bytes that do not yet
// form a complete message come back as the new remainder; nil means the
// buffer ended exactly on a message boundary.
//
// A fatal framing error (ambiguous, invalid or missing length, malformed
// chunk) stops the pass: frames before the fault are still returned, and
// the remainder holds the unconsumed bytes with ReasonRejected.
func (e *Engine) Frame(ctx context.Context, prior *Remainder, data []byte) ([]*Frame, *Remainder, error) {
	var buf []byte
	if prior != nil && len(prior.Raw) > 0 {
		buf = make([]byte, 0, len(prior.Raw)+len(data))
		buf = append(buf, prior.Raw...)
		buf = append(buf, data...)
	} else {
		buf = append([]byte(nil), data...)
	}

	var frames []*Frame
	pos := 0
	for pos < len(buf) {
		rest := buf[pos:]

		split, err := SplitHeaders(rest, e.cfg)
		if errors.Is(err, ErrNeedMoreData) {
			return frames, e.pending(rest, ReasonHeadersIncomplete, MissingUnknown), nil
		}

		length, err := ResolveLength(split.Headers, e.cfg)
		if err != nil {
			return frames, e.reject(rest, err), fmt.Errorf("hop %s: %w", e.cfg.Name, err)
		}

		var (
			end  int
			scan *ChunkScan
		)
		switch {
		case length.Chunked:
			scan, err = ScanChunked(rest, split.BodyOffset, e.cfg.ChunkLineDelimiters)
			if errors.Is(err, ErrNeedMoreData) {
				return frames, e.pending(rest, ReasonBodyIncomplete, MissingUnknown), nil
			}
			if err != nil {
				return frames, e.reject(rest, err), fmt.Errorf("hop %s: %w", e.cfg.Name, err)
			}
			end = scan.End
		case length.UntilEnd:
			end = len(rest)
		default:
			avail := int64(len(rest) - split.BodyOffset)
			if avail < length.Count {
				return frames, e.pending(rest, ReasonBodyIncomplete, length.Count-avail), nil
			}
			end = split.BodyOffset + int(length.Count)
		}

		f := e.forward(ctx, split, length, rest[:end], scan)
		f.Raw = rest[:end:end]
		frames = append(frames, f)
		e.logger.Debug("frame complete",
			slog.String("hop", e.id),
			slog.Int("consumed", end),
			slog.Bool("chunked", length.Chunked))
		pos += end
	}
	return frames, nil, nil
}

func (e *Engine) pending(rest []byte, reason Reason, missing int64) *Remainder {
	e.logger.Debug("frame incomplete",
		slog.String("hop", e.id),
		slog.String("reason", string(reason)),
		slog.Int("buffered", len(rest)),
		slog.Int64("missing", missing))
	return &Remainder{Raw: rest, Reason: reason, Missing: missing}
}

func (e *Engine) reject(rest []byte, err error) *Remainder {
	e.logger.Info("frame rejected",
		slog.String("hop", e.id),
		slog.String("error", err.Error()))
	return &Remainder{Raw: rest, Reason: ReasonRejected, Missing: MissingUnknown, Err: err}
}
