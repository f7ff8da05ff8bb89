package engine

import (
	"fmt"
	"sync"

	"gridsiege.dev/internal/sim/pattern"
	"gridsiege.dev/internal/sim/score"
)

// Position is a grid coordinate pair. Value type.
type Position struct {
	X int
	Y int
}

// Run is the simulation aggregate: the grid plus all round counters.
// Every exported method serializes on one mutex so placement, round
// advance and snapshot reads never interleave. A Run is replaced
// wholesale on reset, never reinitialized in place.
type Run struct {
	mu sync.Mutex

	grid *Grid
	prev *Grid // grid as of the start of the most recent round, nil before round 1

	roundCount       int
	pointsPlaced     int
	initialDefenders int

	over       bool
	finalStats score.Breakdown
	hasFinal   bool
}

// NewRun builds a grid of the given dimensions and seeds defenders from
// the RLE pattern text. A pattern that decodes to zero in-bounds
// defenders is rejected: every later efficiency ratio divides by the
// initial defender count.
func NewRun(width, height int, rle string) (*Run, error) {
	g, err := NewGrid(width, height)
	if err != nil {
		return nil, err
	}
	seeds := pattern.Decode(rle, width, height)
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: pattern decodes to zero defenders", ErrInvalidArgument)
	}
	for _, p := range seeds {
		g.Set(p.X, p.Y, Defender)
	}
	return &Run{
		grid:             g,
		initialDefenders: g.Count(Defender),
	}, nil
}

// PlaceAttacker marks (x, y) as an attacker cell. Returns false without
// error when the run is over, the coordinate is out of bounds, or the
// cell is occupied.
func (r *Run) PlaceAttacker(x, y int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.over {
		return false
	}
	if !r.grid.InBounds(x, y) {
		return false
	}
	if r.grid.At(x, y) != Empty {
		return false
	}
	r.grid.Set(x, y, Attacker)
	r.pointsPlaced++
	return true
}

func (r *Run) Width() int {
	return r.grid.Width()
}

func (r *Run) Height() int {
	return r.grid.Height()
}

// Snapshot returns a deep copy of the current grid. Later mutation of
// the run never alters a previously returned snapshot.
func (r *Run) Snapshot() [][]Cell {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grid.Snapshot()
}

func (r *Run) RoundCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roundCount
}

func (r *Run) PointsPlaced() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pointsPlaced
}

func (r *Run) InitialDefenderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialDefenders
}

func (r *Run) Over() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.over
}

// FinalStats reports the terminal score breakdown. ok is false until
// the round that eliminates the last defender commits.
func (r *Run) FinalStats() (score.Breakdown, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalStats, r.hasFinal
}

// ChangedCellCount counts cells that differ between the snapshot taken
// at the start of the most recent round and the grid after it. Zero
// before the first round.
func (r *Run) ChangedCellCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prev == nil {
		return 0
	}
	return r.grid.diff(r.prev)
}
