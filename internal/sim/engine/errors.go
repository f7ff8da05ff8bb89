package engine

import "errors"

// The engine recognizes exactly two error kinds. Rule outcomes
// (occupied cell, out-of-bounds placement, round after game over) are
// normal boolean/no-op results, never errors.
var (
	// ErrInvalidArgument covers bad construction input: non-positive
	// dimensions or a pattern with no defenders.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvariant marks an internal consistency failure. It indicates
	// a logic defect and is surfaced rather than swallowed.
	ErrInvariant = errors.New("invariant violation")
)
