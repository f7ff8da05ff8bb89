package game

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"gridsiege.dev/internal/protocol"
	"gridsiege.dev/internal/sim/engine"
	"gridsiege.dev/internal/sim/pattern"
	"gridsiege.dev/internal/sim/score"
	"gridsiege.dev/internal/sim/tuning"
)

// Broadcaster fans a server message out to every connected client.
// Implemented by the ws hub; nil-safe via the check in broadcast().
type Broadcaster interface {
	Broadcast(v any)
}

// RoundLogger records one entry per completed round. Implemented in
// internal/persistence/log. May be nil.
type RoundLogger interface {
	WriteRound(entry RoundLogEntry) error
}

type RoundLogEntry struct {
	Round         int    `json:"round"`
	PatternID     int    `json:"pattern_id"`
	PointsPlaced  int    `json:"points_placed"`
	Changed       int    `json:"changed"`
	Defenders     int    `json:"defenders"`
	Attackers     int    `json:"attackers"`
	Over          bool   `json:"over"`
	WeightedScore int    `json:"weighted_score,omitempty"`
	RecordedAt    string `json:"recorded_at"`
}

type Config struct {
	Tuning  tuning.Tuning
	Catalog *pattern.Catalog

	// PatternID pins the opening pattern; 0 picks randomly within the
	// tuned difficulty range.
	PatternID int

	Seed int64
}

// Game owns the live SimulationRun and the pattern it was seeded from.
// Reset replaces the whole aggregate with a fresh one; the old run is
// discarded, never reinitialized. The game mutex serializes the swap
// against placement and round advance, the run's own lock serializes
// grid access.
type Game struct {
	cfg     Config
	log     *log.Logger
	rng     *rand.Rand
	catalog *pattern.Catalog

	broadcaster Broadcaster
	roundLog    RoundLogger

	mu         sync.Mutex
	run        *engine.Run
	pat        pattern.Pattern
	timer      int
	lastUpdate time.Time

	stepMS float64
}

func New(cfg Config, logger *log.Logger) (*Game, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("game: nil pattern catalog")
	}
	g := &Game{
		cfg:     cfg,
		log:     logger,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		catalog: cfg.Catalog,
		timer:   cfg.Tuning.RoundIntervalSeconds,
	}
	run, pat, err := g.freshRun(cfg.PatternID)
	if err != nil {
		return nil, err
	}
	g.run = run
	g.pat = pat
	return g, nil
}

func (g *Game) SetBroadcaster(b Broadcaster) { g.broadcaster = b }
func (g *Game) SetRoundLogger(l RoundLogger) { g.roundLog = l }

func (g *Game) freshRun(patternID int) (*engine.Run, pattern.Pattern, error) {
	var pat pattern.Pattern
	if patternID != 0 {
		p, ok := g.catalog.ByID(patternID)
		if !ok {
			return nil, pattern.Pattern{}, fmt.Errorf("game: unknown pattern id %d", patternID)
		}
		pat = p
	} else {
		p, err := g.catalog.Random(g.rng, g.cfg.Tuning.MinDifficulty, g.cfg.Tuning.MaxDifficulty)
		if err != nil {
			return nil, pattern.Pattern{}, err
		}
		pat = p
	}

	width := g.cfg.Tuning.GridWidth
	height := g.cfg.Tuning.GridHeight
	if pat.MinGridSize[0] > width {
		width = pat.MinGridSize[0]
	}
	if pat.MinGridSize[1] > height {
		height = pat.MinGridSize[1]
	}

	run, err := engine.NewRun(width, height, pat.RLE)
	if err != nil {
		return nil, pattern.Pattern{}, err
	}
	return run, pat, nil
}

// PlaceAttacker forwards a placement to the live run and broadcasts
// the new state when it lands. Rule rejections are silent.
func (g *Game) PlaceAttacker(x, y int) bool {
	g.mu.Lock()
	run := g.run
	g.mu.Unlock()

	if !run.PlaceAttacker(x, y) {
		return false
	}
	g.broadcast(g.StateMessage())
	return true
}

// RequestReset honors a client reset only once the run is over.
func (g *Game) RequestReset() bool {
	g.mu.Lock()
	over := g.run.Over()
	g.mu.Unlock()
	if !over {
		return false
	}
	if err := g.Reset(); err != nil {
		g.log.Printf("reset: %v", err)
		return false
	}
	return true
}

// Reset replaces the aggregate with a fresh run on a newly drawn
// pattern and announces it.
func (g *Game) Reset() error {
	g.mu.Lock()
	run, pat, err := g.freshRun(0)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	g.run = run
	g.pat = pat
	g.timer = g.cfg.Tuning.RoundIntervalSeconds
	g.lastUpdate = time.Time{}
	g.mu.Unlock()

	g.broadcast(protocol.GameResetMsg{
		Type: protocol.TypeGameReset,
		PatternInfo: protocol.PatternInfo{
			ID:          pat.ID,
			Name:        pat.Name,
			Description: pat.Description,
			Difficulty:  pat.Difficulty,
		},
	})
	g.broadcast(g.StateMessage())
	return nil
}

// Run drives the per-second countdown and the round cadence until the
// context ends. After a run finishes it lingers for the tuned reset
// delay, then starts over on a new pattern.
func (g *Game) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	resetWait := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		g.mu.Lock()
		over := g.run.Over()
		g.mu.Unlock()

		if over {
			resetWait++
			if resetWait >= g.cfg.Tuning.ResetDelaySeconds {
				resetWait = 0
				if err := g.Reset(); err != nil {
					g.log.Printf("auto reset: %v", err)
				}
			}
			continue
		}
		resetWait = 0

		g.mu.Lock()
		g.timer--
		remaining := g.timer
		g.mu.Unlock()

		if remaining > 0 {
			g.broadcast(protocol.TimerUpdateMsg{Type: protocol.TypeTimerUpdate, Timer: remaining})
			continue
		}

		if err := g.advanceRound(); err != nil {
			g.log.Printf("advance round: %v", err)
		}
	}
}

func (g *Game) advanceRound() error {
	g.mu.Lock()
	run := g.run
	pat := g.pat
	g.mu.Unlock()

	start := time.Now()
	err := run.AdvanceRound()
	elapsed := time.Since(start)

	g.mu.Lock()
	g.timer = g.cfg.Tuning.RoundIntervalSeconds
	g.lastUpdate = time.Now().UTC()
	g.stepMS = float64(elapsed.Microseconds()) / 1000
	g.mu.Unlock()

	if err != nil {
		return err
	}

	if g.roundLog != nil {
		snap := run.Snapshot()
		entry := RoundLogEntry{
			Round:        run.RoundCount(),
			PatternID:    pat.ID,
			PointsPlaced: run.PointsPlaced(),
			Changed:      run.ChangedCellCount(),
			Defenders:    countCells(snap, engine.Defender),
			Attackers:    countCells(snap, engine.Attacker),
			Over:         run.Over(),
			RecordedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if stats, ok := run.FinalStats(); ok {
			entry.WeightedScore = stats.WeightedScore
		}
		if werr := g.roundLog.WriteRound(entry); werr != nil {
			g.log.Printf("round log: %v", werr)
		}
	}

	g.broadcast(g.StateMessage())
	return nil
}

// StateMessage assembles the full broadcast-ready state from engine
// snapshots and the analytics layer.
func (g *Game) StateMessage() protocol.GridUpdateMsg {
	g.mu.Lock()
	run := g.run
	timer := g.timer
	lastUpdate := g.lastUpdate
	g.mu.Unlock()

	snap := run.Snapshot()
	defenders := countCells(snap, engine.Defender)
	attackers := countCells(snap, engine.Attacker)
	total := len(snap) * len(snap[0])

	territory := 0.0
	if total > 0 {
		territory = float64(defenders+attackers) / float64(total) * 100
		territory = float64(int(territory*100+0.5)) / 100
	}

	grid := make([][]uint8, len(snap))
	for y, row := range snap {
		out := make([]uint8, len(row))
		for x, c := range row {
			out[x] = uint8(c)
		}
		grid[y] = out
	}

	msg := protocol.GridUpdateMsg{
		Type: protocol.TypeGridUpdate,
		Grid: grid,
		Scores: protocol.Scores{
			Defenders: defenders,
			Attackers: attackers,
		},
		Stats: protocol.Stats{
			TerritoryControl: territory,
			DefenderClusters: score.CountClusters(snap, engine.Defender),
			AttackerClusters: score.CountClusters(snap, engine.Attacker),
			Activity:         run.ChangedCellCount(),
			CurrentRound:     run.RoundCount(),
			PointsPlaced:     run.PointsPlaced(),
		},
		Timer:    timer,
		GameOver: run.Over(),
	}
	if !lastUpdate.IsZero() {
		msg.Stats.LastUpdate = lastUpdate.Format(time.RFC3339)
	}
	if stats, ok := run.FinalStats(); ok {
		msg.FinalStats = &protocol.FinalStats{
			TotalRounds:          stats.TotalRounds,
			PointsPlaced:         stats.PointsPlaced,
			InitialDefenderCount: stats.InitialDefenderCount,
			RankInfo: protocol.RankInfo{
				Score:       stats.WeightedScore,
				Title:       stats.Title,
				Description: stats.Description,
			},
		}
	}
	return msg
}

// Metrics for the /metrics endpoint; reads take the same snapshots as
// any other caller.
type Metrics struct {
	Round        int
	PointsPlaced int
	Defenders    int
	Attackers    int
	Over         bool
	PatternID    int
	StepMS       float64
}

func (g *Game) Metrics() Metrics {
	g.mu.Lock()
	run := g.run
	pat := g.pat
	stepMS := g.stepMS
	g.mu.Unlock()

	snap := run.Snapshot()
	return Metrics{
		Round:        run.RoundCount(),
		PointsPlaced: run.PointsPlaced(),
		Defenders:    countCells(snap, engine.Defender),
		Attackers:    countCells(snap, engine.Attacker),
		Over:         run.Over(),
		PatternID:    pat.ID,
		StepMS:       stepMS,
	}
}

// CurrentPattern returns the pattern the live run was seeded from.
func (g *Game) CurrentPattern() pattern.Pattern {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pat
}

func (g *Game) broadcast(v any) {
	if g.broadcaster != nil {
		g.broadcaster.Broadcast(v)
	}
}

func countCells(snap [][]engine.Cell, kind engine.Cell) int {
	n := 0
	for _, row := range snap {
		for _, c := range row {
			if c == kind {
				n++
			}
		}
	}
	return n
}
