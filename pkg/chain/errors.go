package chain

import "errors"

// Sentinel errors for chain topology and routing.
// Callers should use errors.Is() to check for these.
var (
	// ErrUnknownHop indicates a hop ID that is not part of the chain.
	ErrUnknownHop = errors.New("chain: unknown hop")

	// ErrDuplicateHop indicates a hop ID was added twice.
	ErrDuplicateHop = errors.New("chain: duplicate hop")

	// ErrCycle indicates routes that can deliver a frame back to a hop it
	// already passed through.
	ErrCycle = errors.New("chain: routing cycle")

	// ErrInvalidRoute indicates a route whose matcher cannot be evaluated.
	ErrInvalidRoute = errors.New("chain: invalid route")

	// ErrTooDeep indicates a path through the chain longer than
	// defaults.MaxHops.
	ErrTooDeep = errors.New("chain: too many hops")
)
