package game

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"gridsiege.dev/internal/protocol"
	"gridsiege.dev/internal/sim/pattern"
	"gridsiege.dev/internal/sim/tuning"
)

type captureBroadcaster struct {
	msgs []any
}

func (c *captureBroadcaster) Broadcast(v any) { c.msgs = append(c.msgs, v) }

type captureRoundLog struct {
	entries []RoundLogEntry
}

func (c *captureRoundLog) WriteRound(e RoundLogEntry) error {
	c.entries = append(c.entries, e)
	return nil
}

// Three defenders in a row at (5,5)..(7,5).
const testCatalogYAML = `
patterns:
  - id: 1
    name: Lone Garrison
    description: a single defender line
    difficulty: 1
    rle: "5$5b3o!"
    min_grid_size: [12, 12]
`

func testCatalog(t *testing.T) *pattern.Catalog {
	t.Helper()
	p := filepath.Join(t.TempDir(), "patterns.yaml")
	if err := os.WriteFile(p, []byte(testCatalogYAML), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	c, err := pattern.Load(p)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func testTuning() tuning.Tuning {
	tn := tuning.Defaults()
	tn.GridWidth = 8
	tn.GridHeight = 8
	return tn
}

func newTestGame(t *testing.T) (*Game, *captureBroadcaster) {
	t.Helper()
	g, err := New(Config{
		Tuning:  testTuning(),
		Catalog: testCatalog(t),
		Seed:    1,
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	b := &captureBroadcaster{}
	g.SetBroadcaster(b)
	return g, b
}

func TestNew_Validation(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	if _, err := New(Config{Tuning: testTuning()}, logger); err == nil {
		t.Fatalf("nil catalog accepted")
	}
	if _, err := New(Config{Tuning: testTuning(), Catalog: testCatalog(t), PatternID: 42}, logger); err == nil {
		t.Fatalf("unknown pinned pattern accepted")
	}
}

func TestStateMessage_FreshGame(t *testing.T) {
	g, _ := newTestGame(t)

	msg := g.StateMessage()
	if msg.Type != protocol.TypeGridUpdate {
		t.Fatalf("type = %q", msg.Type)
	}
	// Tuned 8x8 grows to the pattern's 12x12 minimum.
	if len(msg.Grid) != 12 || len(msg.Grid[0]) != 12 {
		t.Fatalf("grid %dx%d, want 12x12", len(msg.Grid[0]), len(msg.Grid))
	}
	if msg.Scores.Defenders != 3 || msg.Scores.Attackers != 0 {
		t.Fatalf("scores %+v", msg.Scores)
	}
	if msg.Stats.DefenderClusters != 1 || msg.Stats.AttackerClusters != 0 {
		t.Fatalf("clusters %+v", msg.Stats)
	}
	if msg.Stats.CurrentRound != 0 || msg.Stats.PointsPlaced != 0 {
		t.Fatalf("counters %+v", msg.Stats)
	}
	if msg.Stats.LastUpdate != "" {
		t.Fatalf("fresh game has last_update %q", msg.Stats.LastUpdate)
	}
	if msg.Timer != tuning.Defaults().RoundIntervalSeconds {
		t.Fatalf("timer = %d", msg.Timer)
	}
	if msg.GameOver || msg.FinalStats != nil {
		t.Fatalf("fresh game reports terminal state")
	}

	pat := g.CurrentPattern()
	if pat.ID != 1 || pat.Name != "Lone Garrison" {
		t.Fatalf("pattern %+v", pat)
	}
}

func TestPlaceAttacker_BroadcastsOnSuccessOnly(t *testing.T) {
	g, b := newTestGame(t)

	if !g.PlaceAttacker(2, 2) {
		t.Fatalf("placement rejected")
	}
	if len(b.msgs) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(b.msgs))
	}
	upd, ok := b.msgs[0].(protocol.GridUpdateMsg)
	if !ok {
		t.Fatalf("broadcast %T, want GridUpdateMsg", b.msgs[0])
	}
	if upd.Scores.Attackers != 1 || upd.Stats.PointsPlaced != 1 {
		t.Fatalf("update %+v", upd)
	}

	// Occupied cell and defender cell: no broadcast for rejections.
	if g.PlaceAttacker(2, 2) || g.PlaceAttacker(5, 5) {
		t.Fatalf("invalid placement accepted")
	}
	if len(b.msgs) != 1 {
		t.Fatalf("broadcasts after rejections = %d, want 1", len(b.msgs))
	}
}

func finishRun(t *testing.T, g *Game) {
	t.Helper()
	// A plus of five attackers centered at (6,7) reaches strength 3;
	// its 5x5 kill zone covers all three defenders on row 5.
	for _, p := range [][2]int{{6, 7}, {5, 7}, {7, 7}, {6, 6}, {6, 8}} {
		if !g.PlaceAttacker(p[0], p[1]) {
			t.Fatalf("place (%d,%d)", p[0], p[1])
		}
	}
	if err := g.advanceRound(); err != nil {
		t.Fatalf("advance: %v", err)
	}
}

func TestAdvanceRound_TerminalBroadcastAndLog(t *testing.T) {
	g, b := newTestGame(t)
	rl := &captureRoundLog{}
	g.SetRoundLogger(rl)

	finishRun(t, g)

	last, ok := b.msgs[len(b.msgs)-1].(protocol.GridUpdateMsg)
	if !ok {
		t.Fatalf("last broadcast %T", b.msgs[len(b.msgs)-1])
	}
	if !last.GameOver || last.FinalStats == nil {
		t.Fatalf("terminal update %+v", last)
	}
	fs := last.FinalStats
	if fs.InitialDefenderCount != 3 || fs.TotalRounds != 1 || fs.PointsPlaced != 5 {
		t.Fatalf("final stats %+v", fs)
	}
	if fs.RankInfo.Score < 0 || fs.RankInfo.Score > 1000 || fs.RankInfo.Title == "" {
		t.Fatalf("rank info %+v", fs.RankInfo)
	}
	if last.Stats.LastUpdate == "" {
		t.Fatalf("terminal update missing last_update")
	}

	if len(rl.entries) != 1 {
		t.Fatalf("round log entries = %d, want 1", len(rl.entries))
	}
	e := rl.entries[0]
	if e.Round != 1 || e.PatternID != 1 || !e.Over || e.Defenders != 0 || e.Attackers != 5 {
		t.Fatalf("round log entry %+v", e)
	}
	if e.WeightedScore != fs.RankInfo.Score {
		t.Fatalf("logged score %d, broadcast score %d", e.WeightedScore, fs.RankInfo.Score)
	}
	if e.RecordedAt == "" {
		t.Fatalf("entry missing timestamp")
	}
}

func TestRequestReset_OnlyWhenOver(t *testing.T) {
	g, b := newTestGame(t)

	if g.RequestReset() {
		t.Fatalf("reset honored mid-run")
	}

	finishRun(t, g)
	b.msgs = nil

	if !g.RequestReset() {
		t.Fatalf("reset rejected after game over")
	}
	if len(b.msgs) != 2 {
		t.Fatalf("broadcasts = %d, want game_reset + grid_update", len(b.msgs))
	}
	reset, ok := b.msgs[0].(protocol.GameResetMsg)
	if !ok {
		t.Fatalf("first broadcast %T", b.msgs[0])
	}
	if reset.Type != protocol.TypeGameReset || reset.PatternInfo.ID != 1 {
		t.Fatalf("reset message %+v", reset)
	}
	upd, ok := b.msgs[1].(protocol.GridUpdateMsg)
	if !ok {
		t.Fatalf("second broadcast %T", b.msgs[1])
	}
	if upd.GameOver || upd.FinalStats != nil {
		t.Fatalf("fresh run still terminal: %+v", upd)
	}
	if upd.Scores.Defenders != 3 || upd.Scores.Attackers != 0 {
		t.Fatalf("fresh run scores %+v", upd.Scores)
	}
	if upd.Stats.CurrentRound != 0 || upd.Stats.PointsPlaced != 0 {
		t.Fatalf("fresh run counters %+v", upd.Stats)
	}
}

func TestMetrics(t *testing.T) {
	g, _ := newTestGame(t)
	g.PlaceAttacker(0, 0)

	m := g.Metrics()
	if m.Round != 0 || m.PointsPlaced != 1 || m.Defenders != 3 || m.Attackers != 1 {
		t.Fatalf("metrics %+v", m)
	}
	if m.Over || m.PatternID != 1 {
		t.Fatalf("metrics %+v", m)
	}

	finishRun(t, g)
	m = g.Metrics()
	if !m.Over || m.Round != 1 {
		t.Fatalf("terminal metrics %+v", m)
	}
}
