package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/waftester/desyncsim/pkg/defaults"
	"github.com/waftester/desyncsim/pkg/framing"
)

// Recorder is told about every delivery. The metrics collector
// implements it.
type Recorder interface {
	Delivered(d *Delivery)
}

type nopRecorder struct{}

func (nopRecorder) Delivered(*Delivery) {}

// Runner feeds streams through a chain.
type Runner struct {
	chain    *Chain
	store    *Store
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStore shares a remainder store between runners.
func WithStore(s *Store) RunnerOption {
	return func(r *Runner) {
		if s != nil {
			r.store = s
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder registers a delivery recorder.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithTracer sets the tracer used for per-hop spans. Defaults to the
// global provider's "desyncsim/chain" tracer.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// NewRunner validates c and returns a runner for it.
func NewRunner(c *Chain, opts ...RunnerOption) (*Runner, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		chain:    c,
		store:    NewStore(),
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer(defaults.ToolName + "/chain"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Store returns the runner's remainder store.
func (r *Runner) Store() *Store { return r.store }

// NewStreamID returns a fresh random stream identifier.
func NewStreamID() string {
	return uuid.NewString()
}

// Feed delivers data to the entry hop of stream and follows every frame
// through the chain depth-first. Framing errors are recorded in the trace,
// not returned; the error is reserved for cancellation and topology faults.
func (r *Runner) Feed(ctx context.Context, stream string, data []byte) (*Trace, error) {
	t := &Trace{Stream: stream}
	if err := r.deliver(ctx, t, "", r.chain.Entry(), nil, data, 1); err != nil {
		return t, err
	}
	return t, nil
}

func (r *Runner) deliver(ctx context.Context, t *Trace, from, to string, src *framing.Frame, data []byte, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > defaults.MaxHops {
		return fmt.Errorf("%w: more than %d", ErrTooDeep, defaults.MaxHops)
	}
	hop, ok := r.chain.Hop(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHop, to)
	}

	ctx, span := r.tracer.Start(ctx, "hop "+to, trace.WithAttributes(
		attribute.String("desyncsim.stream", t.Stream),
		attribute.String("desyncsim.hop", to),
		attribute.String("desyncsim.from", from),
		attribute.Int("desyncsim.input_bytes", len(data)),
	))
	defer span.End()

	prior := r.store.Get(t.Stream, to)
	d := &Delivery{From: from, To: to, Source: src, Input: data, Prior: prior.Len()}
	d.Frames, d.Remainder, d.Err = hop.Engine.Frame(ctx, prior, data)
	r.store.Put(t.Stream, to, d.Remainder)
	t.Deliveries = append(t.Deliveries, d)
	r.recorder.Delivered(d)

	span.SetAttributes(
		attribute.Int("desyncsim.frames", len(d.Frames)),
		attribute.Int("desyncsim.pending_bytes", d.Remainder.Len()),
	)
	if d.Err != nil {
		span.RecordError(d.Err)
		span.SetStatus(codes.Error, d.Err.Error())
	}
	r.logger.Debug("hop delivery",
		slog.String("stream", t.Stream),
		slog.String("hop", to),
		slog.String("from", from),
		slog.Int("input", len(data)),
		slog.Int("prior", d.Prior),
		slog.Int("frames", len(d.Frames)),
		slog.Int("pending", d.Remainder.Len()))

	d.Next = make([]string, len(d.Frames))
	for i, f := range d.Frames {
		next := r.route(ctx, hop, f)
		d.Next[i] = next
		if next == "" {
			t.Output = append(t.Output, f)
			continue
		}
		if err := r.deliver(ctx, t, to, next, f, f.Bytes(), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// route picks the next hop for f. Matcher failures are logged and treated
// as no match.
func (r *Runner) route(ctx context.Context, hop *Hop, f *framing.Frame) string {
	for i, rt := range hop.Routes {
		ok, err := rt.Match.Matches(ctx, f)
		if err != nil {
			r.logger.Warn("route matcher failed",
				slog.String("hop", hop.ID),
				slog.Int("route", i),
				slog.String("error", err.Error()))
			continue
		}
		if ok {
			return rt.To
		}
	}
	return hop.Default
}

// Flush removes every remainder of stream and returns them in chain order,
// for rendering "incomplete request" markers when the stream ends.
func (r *Runner) Flush(stream string) []Pending {
	dropped := r.store.Drop(stream)
	if len(dropped) == 0 {
		return nil
	}
	rank := make(map[string]int)
	for i, id := range r.chain.IDs() {
		rank[id] = i
	}
	out := make([]Pending, 0, len(dropped))
	for hop, rem := range dropped {
		out = append(out, Pending{Hop: hop, Remainder: rem})
	}
	sort.Slice(out, func(i, j int) bool { return rank[out[i].Hop] < rank[out[j].Hop] })
	return out
}
