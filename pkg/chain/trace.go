package chain

import "github.com/waftester/desyncsim/pkg/framing"

// Delivery is one Frame call: bytes handed to a hop and what it made of
// them.
type Delivery struct {
	// From is the upstream hop, empty for client bytes.
	From string
	To   string
	// Source is the upstream frame that produced Input, nil for client bytes.
	Source *framing.Frame
	Input  []byte
	// Prior is how many bytes the hop still held from earlier deliveries.
	Prior     int
	Frames    []*framing.Frame
	Remainder *framing.Remainder
	Err       error
	// Next holds the routing decision for each frame; empty means the frame
	// left the chain.
	Next []string
}

// Trace records one Feed through the chain.
type Trace struct {
	Stream     string
	Deliveries []*Delivery
	// Output are the frames that left the chain, in emission order.
	Output []*framing.Frame
}

// ByHop returns the deliveries made to hop, in order.
func (t *Trace) ByHop(hop string) []*Delivery {
	var out []*Delivery
	for _, d := range t.Deliveries {
		if d.To == hop {
			out = append(out, d)
		}
	}
	return out
}

// Frames returns every frame hop completed during the feed.
func (t *Trace) Frames(hop string) []*framing.Frame {
	var out []*framing.Frame
	for _, d := range t.ByHop(hop) {
		out = append(out, d.Frames...)
	}
	return out
}

// Pending is a remainder left behind when a stream is flushed.
type Pending struct {
	Hop       string
	Remainder *framing.Remainder
}

// Diagnostic renders the operator marker for the pending bytes.
func (p Pending) Diagnostic() string {
	return p.Hop + ": " + p.Remainder.Diagnostic()
}
