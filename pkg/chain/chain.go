// Package chain models an ordered or branching topology of intermediaries
// and pushes byte streams through it, one framing engine per hop.
//
// Each hop frames what it receives with its own configuration. Every frame
// it completes is routed to the next hop (or out of the chain), so a single
// client write can fan out into several differently segmented messages.
// Per-hop leftovers are kept in a Store keyed by (stream, hop), never inside
// the engines themselves.
package chain

import (
	"fmt"

	"github.com/waftester/desyncsim/pkg/defaults"
	"github.com/waftester/desyncsim/pkg/framing"
)

// Hop is one intermediary: a framing engine plus its routing rules.
type Hop struct {
	ID     string
	Engine *framing.Engine
	// Routes are tried in order; the first matching route picks the next hop.
	Routes []Route
	// Default is the next hop when no route matches. Empty makes the hop
	// terminal for unmatched frames.
	Default string
}

// Terminal reports whether the hop never forwards.
func (h *Hop) Terminal() bool {
	return len(h.Routes) == 0 && h.Default == ""
}

// Chain is a validated-on-demand set of hops with a single entry point.
// Hops may be swapped between runs with Replace; a run reads each hop once
// per delivery.
type Chain struct {
	entry string
	hops  map[string]*Hop
	ids   []string
}

// New creates an empty chain whose client traffic enters at entry.
func New(entry string) *Chain {
	return &Chain{entry: entry, hops: make(map[string]*Hop)}
}

// Linear builds a straight chain: each hop defaults to the next one and the
// last hop is terminal. Existing routes on the hops are kept.
func Linear(hops ...*Hop) (*Chain, error) {
	if len(hops) == 0 {
		return nil, fmt.Errorf("%w: empty chain", ErrUnknownHop)
	}
	c := New(hops[0].ID)
	for i, h := range hops {
		if i+1 < len(hops) && h.Default == "" {
			h.Default = hops[i+1].ID
		}
		if err := c.AddHop(h); err != nil {
			return nil, err
		}
	}
	return c, c.Validate()
}

// Entry returns the ID of the hop that receives client bytes.
func (c *Chain) Entry() string { return c.entry }

// AddHop adds h. IDs must be unique and non-empty.
func (c *Chain) AddHop(h *Hop) error {
	if h == nil || h.ID == "" {
		return fmt.Errorf("%w: hop without an id", ErrUnknownHop)
	}
	if h.Engine == nil {
		return fmt.Errorf("hop %s: no framing engine", h.ID)
	}
	if _, ok := c.hops[h.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHop, h.ID)
	}
	c.hops[h.ID] = h
	c.ids = append(c.ids, h.ID)
	return nil
}

// Replace swaps the definition of an existing hop, keeping its identity so
// stored remainders still apply.
func (c *Chain) Replace(h *Hop) error {
	if _, ok := c.hops[h.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHop, h.ID)
	}
	c.hops[h.ID] = h
	return nil
}

// Hop returns the hop with the given ID.
func (c *Chain) Hop(id string) (*Hop, bool) {
	h, ok := c.hops[id]
	return h, ok
}

// IDs returns hop IDs in the order they were added.
func (c *Chain) IDs() []string {
	return append([]string(nil), c.ids...)
}

// next lists every hop h can forward to, routes first.
func (h *Hop) next() []string {
	out := make([]string, 0, len(h.Routes)+1)
	for _, r := range h.Routes {
		out = append(out, r.To)
	}
	if h.Default != "" {
		out = append(out, h.Default)
	}
	return out
}

// Validate checks that the entry and every route target exist, that every
// matcher is usable, and that the topology is acyclic and no deeper than
// defaults.MaxHops.
func (c *Chain) Validate() error {
	if _, ok := c.hops[c.entry]; !ok {
		return fmt.Errorf("%w: entry %q", ErrUnknownHop, c.entry)
	}
	for _, id := range c.ids {
		h := c.hops[id]
		for i, r := range h.Routes {
			if _, ok := c.hops[r.To]; !ok {
				return fmt.Errorf("%w: hop %s route %d targets %q", ErrUnknownHop, id, i, r.To)
			}
			if err := r.Match.Validate(); err != nil {
				return fmt.Errorf("hop %s route %d: %w", id, i, err)
			}
		}
		if h.Default != "" {
			if _, ok := c.hops[h.Default]; !ok {
				return fmt.Errorf("%w: hop %s default %q", ErrUnknownHop, id, h.Default)
			}
		}
	}
	_, err := c.Order()
	return err
}

// Order returns the hops reachable from the entry in topological order.
// It fails with ErrCycle or ErrTooDeep.
func (c *Chain) Order() ([]string, error) {
	const (
		unseen = iota
		active
		done
	)
	state := make(map[string]int, len(c.hops))
	var order []string

	var visit func(id string, depth int) error
	visit = func(id string, depth int) error {
		if depth > defaults.MaxHops {
			return fmt.Errorf("%w: more than %d", ErrTooDeep, defaults.MaxHops)
		}
		switch state[id] {
		case active:
			return fmt.Errorf("%w: through %s", ErrCycle, id)
		case done:
			return nil
		}
		h, ok := c.hops[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownHop, id)
		}
		state[id] = active
		for _, n := range h.next() {
			if err := visit(n, depth+1); err != nil {
				return err
			}
		}
		state[id] = done
		order = append(order, id)
		return nil
	}
	if err := visit(c.entry, 1); err != nil {
		return nil, err
	}
	// post-order, reversed
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}
