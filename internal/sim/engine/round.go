package engine

import (
	"fmt"

	"gridsiege.dev/internal/sim/score"
)

// Candidate single-step offsets, tried in fixed priority order. sx/sy
// are the signs of the vector toward the chosen target; the last two
// are perpendicular fallbacks.
func stepCandidates(sx, sy int) [5][2]int {
	return [5][2]int{
		{sx, sy},
		{sx, 0},
		{0, sy},
		{-sy, sx},
		{sy, -sx},
	}
}

type move struct {
	from Position
	to   Position
}

// AdvanceRound executes one complete round: movement toward the
// nearest defender, density-weighted strength aggregation, simultaneous
// attack resolution, defender removal, and the win check. The whole
// round runs under the aggregate lock; a caller can never observe a
// partially applied round. No-op once the run is over.
func (r *Run) AdvanceRound() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.over {
		return nil
	}

	r.prev = r.grid.Clone()
	r.roundCount++

	defenders := r.grid.positionsOf(Defender)
	attackers := r.grid.positionsOf(Attacker)
	work := r.grid.Clone()

	// Movement phase: propose single-step moves against the pre-round
	// occupancy. Moves are collected, not applied, so every proposal
	// sees the same board.
	var moves []move
	for _, a := range attackers {
		d, ok := nearestDefender(a, defenders)
		if !ok {
			continue
		}
		sx := sign(d.X - a.X)
		sy := sign(d.Y - a.Y)
		for _, off := range stepCandidates(sx, sy) {
			nx, ny := a.X+off[0], a.Y+off[1]
			if work.InBounds(nx, ny) && work.At(nx, ny) == Empty {
				moves = append(moves, move{from: a, to: Position{X: nx, Y: ny}})
				break
			}
		}
	}

	// Apply moves in proposal order. Earlier attackers win destination
	// collisions; the loser stays put. The source re-check guards
	// against conflicting vacate/occupy pairs.
	for _, m := range moves {
		if work.At(m.from.X, m.from.Y) != Attacker {
			continue
		}
		if work.At(m.to.X, m.to.Y) != Empty {
			continue
		}
		work.Set(m.from.X, m.from.Y, Empty)
		work.Set(m.to.X, m.to.Y, Attacker)
	}

	// Attack resolution over pre-move attacker positions: an attacker
	// with local strength >= 3 clears every defender in its 5x5
	// Chebyshev neighborhood on the pre-round grid.
	killed := make(map[Position]struct{})
	for _, a := range attackers {
		if localStrength(a, attackers) < 3 {
			continue
		}
		for dy := -2; dy <= 2; dy++ {
			for dx := -2; dx <= 2; dx++ {
				nx, ny := a.X+dx, a.Y+dy
				if r.grid.InBounds(nx, ny) && r.grid.At(nx, ny) == Defender {
					killed[Position{X: nx, Y: ny}] = struct{}{}
				}
			}
		}
	}
	for p := range killed {
		work.Set(p.X, p.Y, Empty)
	}

	r.grid = work

	// Moves relocate attackers and kills only clear defenders, so the
	// attacker population must survive the round intact.
	if got := r.grid.Count(Attacker); got != len(attackers) {
		return fmt.Errorf("%w: attacker count %d -> %d in round %d", ErrInvariant, len(attackers), got, r.roundCount)
	}

	remaining := len(defenders) - len(killed)
	if remaining == 0 && !r.over {
		r.over = true
		r.finalStats = score.ComputeRank(r.initialDefenders, r.pointsPlaced, r.roundCount)
		r.hasFinal = true
	}
	return nil
}

// nearestDefender picks the Manhattan-nearest defender. Ties break to
// the first candidate in row-major (y, x) order, which is the order
// positionsOf produces.
func nearestDefender(a Position, defenders []Position) (Position, bool) {
	if len(defenders) == 0 {
		return Position{}, false
	}
	best := defenders[0]
	bestDist := manhattan(a, best)
	for _, d := range defenders[1:] {
		if dist := manhattan(a, d); dist < bestDist {
			best = d
			bestDist = dist
		}
	}
	return best, true
}

// localStrength models attack power as density-weighted presence: each
// attacker within Manhattan distance 2 of a contributes 1/(dist+1),
// including a itself.
func localStrength(a Position, attackers []Position) float64 {
	strength := 0.0
	for _, b := range attackers {
		if dist := manhattan(a, b); dist <= 2 {
			strength += 1 / float64(dist+1)
		}
	}
	return strength
}

func manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
