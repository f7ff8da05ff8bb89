package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"gridsiege.dev/internal/game"
)

func readJSONLZst(t *testing.T, path string) []game.RoundLogEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var entries []game.RoundLogEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e game.RoundLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("parse line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return entries
}

func TestRoundLogger_WriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	l := NewRoundLogger(dir)

	want := []game.RoundLogEntry{
		{Round: 1, PatternID: 3, PointsPlaced: 2, Changed: 4, Defenders: 6, Attackers: 2, RecordedAt: "2026-01-02T15:04:05Z"},
		{Round: 2, PatternID: 3, PointsPlaced: 5, Changed: 7, Defenders: 4, Attackers: 5, RecordedAt: "2026-01-02T15:04:10Z"},
		{Round: 3, PatternID: 3, PointsPlaced: 5, Changed: 9, Defenders: 0, Attackers: 5, Over: true, WeightedScore: 812, RecordedAt: "2026-01-02T15:04:15Z"},
	}
	for _, e := range want {
		if err := l.WriteRound(e); err != nil {
			t.Fatalf("write round %d: %v", e.Round, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "rounds", "rounds-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("log files = %v (err %v), want exactly one", matches, err)
	}

	got := readJSONLZst(t, matches[0])
	if len(got) != len(want) {
		t.Fatalf("read %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestJSONLZstdWriter_CloseWithoutWrites(t *testing.T) {
	w := NewJSONLZstdWriter(t.TempDir(), "rounds")
	if err := w.Close(); err != nil {
		t.Fatalf("close idle writer: %v", err)
	}
}

func TestJSONLZstdWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	w := NewJSONLZstdWriter(dir, "events")
	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A new writer in the same hour appends a second zstd frame to the
	// same file; the streaming reader must see both lines.
	w = NewJSONLZstdWriter(dir, "events")
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("files = %v (err %v)", matches, err)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	lines := 0
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		lines++
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if lines != 2 {
		t.Fatalf("lines = %d, want 2", lines)
	}
}
