// Package placeholder resolves length tags in authored request documents.
//
// A document marks blocks with <start_ID>…<end_ID> and refers to their byte
// lengths with <int_ID> (decimal), <hex_ID> (lowercase hex) and
// <repeat(ID,"s")> / <repeat_ID("s")>. <repeat("s",N)> repeats a literal and
// <name_ID> runs a registered Transformer over block ID. Lengths are counted
// with nested block markers removed and every other tag still literal, then
// a final pass substitutes the tags.
package placeholder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/waftester/desyncsim/internal/hexutil"
	"github.com/waftester/desyncsim/pkg/defaults"
	"github.com/waftester/desyncsim/pkg/duration"
	"github.com/waftester/desyncsim/pkg/framing"
)

// Transformer is a user tag implementation. Scripts loaded by pkg/script
// satisfy it, as does any framing.Hook.
type Transformer interface {
	Apply(ctx context.Context, input []byte) ([]byte, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(ctx context.Context, input []byte) ([]byte, error)

// Apply calls f.
func (f TransformerFunc) Apply(ctx context.Context, input []byte) ([]byte, error) {
	return f(ctx, input)
}

// Resolver resolves placeholder documents. It is safe for concurrent use.
type Resolver struct {
	tags       map[string]Transformer
	maxRepeat  int
	maxNesting int
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithTag registers a user tag. Reserved names (start, end, int, hex,
// repeat) and non-identifiers are rejected.
func WithTag(name string, t Transformer) Option {
	return func(r *Resolver) error {
		if reserved[name] || !namePattern.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidTag, name)
		}
		if t == nil {
			return fmt.Errorf("%w: %q has no transformer", ErrInvalidTag, name)
		}
		r.tags[name] = t
		return nil
	}
}

// WithMaxRepeat caps the bytes a single repeat tag may expand to.
func WithMaxRepeat(n int) Option {
	return func(r *Resolver) error {
		if n > 0 {
			r.maxRepeat = n
		}
		return nil
	}
}

// WithTimeout bounds each user tag invocation.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) error {
		if d > 0 {
			r.timeout = d
		}
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) error {
		if l != nil {
			r.logger = l
		}
		return nil
	}
}

// New creates a resolver.
func New(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		tags:       make(map[string]Transformer),
		maxRepeat:  defaults.MaxRepeat,
		maxNesting: defaults.MaxNesting,
		timeout:    duration.TagTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Names returns the registered user tag names, sorted.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.tags))
	for n := range r.tags {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Tags lists the tags recognised in doc, in document order.
func (r *Resolver) Tags(doc []byte) ([]Tag, error) {
	return r.lex(doc)
}

// block is a validated <start_ID>…<end_ID> pair.
type block struct {
	open, close int // tag indices
	length      int
}

type frame struct {
	tag     int // index of the start tag
	markers int // marker bytes seen before the block opened
}

// Resolve substitutes every tag in doc. On a *ValidationError the original
// bytes are returned alongside it.
func (r *Resolver) Resolve(ctx context.Context, doc []byte) ([]byte, error) {
	tags, err := r.lex(doc)
	if err != nil {
		return doc, err
	}
	if len(tags) == 0 {
		return doc, nil
	}
	blocks, err := r.validate(tags)
	if err != nil {
		return doc, err
	}

	res := &resolution{r: r, doc: doc, tags: tags, blocks: blocks, content: make(map[int][]byte)}
	return res.render(ctx, 0, len(doc), 0, len(tags), true), nil
}

// validate checks nesting and references and measures every block in one
// left-to-right pass with an explicit stack.
func (r *Resolver) validate(tags []Tag) (map[int]*block, error) {
	blocks := make(map[int]*block)
	var (
		stack   []frame
		refs    []int
		markers int
	)
	isOpen := func(id int) bool {
		b, ok := blocks[id]
		return ok && b.close < 0
	}

	for i, t := range tags {
		switch t.Kind {
		case KindStart:
			if _, seen := blocks[t.ID]; seen {
				return nil, invalidf(t.Offset, "block %d opened more than once", t.ID)
			}
			if len(stack) >= r.maxNesting {
				return nil, invalidf(t.Offset, "blocks nested deeper than %d", r.maxNesting)
			}
			blocks[t.ID] = &block{open: i, close: -1}
			markers += t.Len
			stack = append(stack, frame{tag: i, markers: markers})
		case KindEnd:
			if len(stack) == 0 {
				return nil, invalidf(t.Offset, "end_%d with no open block", t.ID)
			}
			top := stack[len(stack)-1]
			if open := tags[top.tag]; open.ID != t.ID {
				return nil, invalidf(t.Offset, "end_%d does not match open block %d", t.ID, open.ID)
			}
			stack = stack[:len(stack)-1]
			start := tags[top.tag]
			b := blocks[t.ID]
			b.close = i
			b.length = t.Offset - (start.Offset + start.Len) - (markers - top.markers)
			markers += t.Len
		case KindRepeatN:
			if t.Count > r.maxRepeat || t.Count*len(t.Text) > r.maxRepeat {
				return nil, invalidf(t.Offset, "repeat expands beyond %d bytes", r.maxRepeat)
			}
		default:
			if isOpen(t.ID) {
				return nil, invalidf(t.Offset, "block %d referenced before it is closed", t.ID)
			}
			refs = append(refs, i)
		}
	}
	if len(stack) > 0 {
		t := tags[stack[len(stack)-1].tag]
		return nil, invalidf(t.Offset, "block %d is never closed", t.ID)
	}

	for _, i := range refs {
		t := tags[i]
		b, ok := blocks[t.ID]
		if !ok {
			return nil, invalidf(t.Offset, "reference to unknown block %d", t.ID)
		}
		if t.Kind == KindRepeat && b.length*len(t.Text) > r.maxRepeat {
			return nil, invalidf(t.Offset, "repeat expands beyond %d bytes", r.maxRepeat)
		}
	}
	return blocks, nil
}

// resolution holds the per-call state of one Resolve.
type resolution struct {
	r       *Resolver
	doc     []byte
	tags    []Tag
	blocks  map[int]*block
	content map[int][]byte
}

// render emits doc[lo:hi] with tags[first:last] substituted. Markers are
// dropped. User tags are run when user is set and kept literal otherwise.
func (s *resolution) render(ctx context.Context, lo, hi, first, last int, user bool) []byte {
	out := make([]byte, 0, hi-lo)
	pos := lo
	for i := first; i < last; i++ {
		t := s.tags[i]
		out = append(out, s.doc[pos:t.Offset]...)
		pos = t.Offset + t.Len
		switch t.Kind {
		case KindStart, KindEnd:
		case KindInt:
			out = strconv.AppendInt(out, int64(s.blocks[t.ID].length), 10)
		case KindHex:
			out = hexutil.AppendUint(out, uint64(s.blocks[t.ID].length))
		case KindRepeat:
			out = append(out, bytes.Repeat([]byte(t.Text), s.blocks[t.ID].length)...)
		case KindRepeatN:
			out = append(out, bytes.Repeat([]byte(t.Text), t.Count)...)
		case KindUser:
			if user {
				out = append(out, s.transform(ctx, t)...)
			} else {
				out = append(out, s.doc[t.Offset:pos]...)
			}
		}
	}
	return append(out, s.doc[pos:hi]...)
}

// blockContent is block id with markers removed, builtins substituted and
// user tags literal.
func (s *resolution) blockContent(ctx context.Context, id int) []byte {
	if c, ok := s.content[id]; ok {
		return c
	}
	b := s.blocks[id]
	open, end := s.tags[b.open], s.tags[b.close]
	c := s.render(ctx, open.Offset+open.Len, end.Offset, b.open+1, b.close, false)
	s.content[id] = c
	return c
}

func (s *resolution) transform(ctx context.Context, t Tag) []byte {
	in := s.blockContent(ctx, t.ID)
	out, err := framing.CallHook(ctx, s.r.timeout, t.Name, s.r.tags[t.Name], in)
	if err != nil {
		s.r.logger.Warn("user tag failed, passing block through",
			slog.String("tag", t.Name),
			slog.Int("block", t.ID),
			slog.String("error", err.Error()))
		return in
	}
	return out
}
