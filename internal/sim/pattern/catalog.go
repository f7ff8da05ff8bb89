package pattern

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Pattern is an immutable catalog entry describing one defender layout.
type Pattern struct {
	ID            int    `yaml:"id"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Difficulty    int    `yaml:"difficulty"` // 1-5
	RLE           string `yaml:"rle"`
	MinGridSize   [2]int `yaml:"min_grid_size"`
	TacticalNotes string `yaml:"tactical_notes,omitempty"`
	NextPatternID int    `yaml:"next_pattern_id,omitempty"`
}

type Catalog struct {
	byID   map[int]Pattern
	ids    []int // sorted, for deterministic iteration
	Digest string
}

type catalogFile struct {
	Patterns []Pattern `yaml:"patterns"`
}

// Load reads patterns.yaml and validates every entry: unique id,
// difficulty 1-5, and at least one defender cell inside the declared
// minimum grid size.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("patterns.yaml: %w", err)
	}
	if len(f.Patterns) == 0 {
		return nil, fmt.Errorf("patterns.yaml: no patterns")
	}

	c := &Catalog{byID: make(map[int]Pattern, len(f.Patterns))}
	for _, p := range f.Patterns {
		if p.ID <= 0 {
			return nil, fmt.Errorf("patterns.yaml: pattern %q: missing id", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("patterns.yaml: duplicate id %d", p.ID)
		}
		if p.Difficulty < 1 || p.Difficulty > 5 {
			return nil, fmt.Errorf("patterns.yaml: pattern %d: difficulty %d out of range", p.ID, p.Difficulty)
		}
		if p.MinGridSize[0] <= 0 || p.MinGridSize[1] <= 0 {
			return nil, fmt.Errorf("patterns.yaml: pattern %d: bad min_grid_size", p.ID)
		}
		// A pattern that decodes to zero defenders would break every
		// later efficiency ratio, so it is rejected up front.
		if len(Decode(p.RLE, p.MinGridSize[0], p.MinGridSize[1])) == 0 {
			return nil, fmt.Errorf("patterns.yaml: pattern %d: decodes to zero defenders", p.ID)
		}
		c.byID[p.ID] = p
		c.ids = append(c.ids, p.ID)
	}
	sort.Ints(c.ids)

	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])
	return c, nil
}

func (c *Catalog) ByID(id int) (Pattern, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Random picks a pattern with difficulty in [min, max].
func (c *Catalog) Random(rng *rand.Rand, minDifficulty, maxDifficulty int) (Pattern, error) {
	var candidates []int
	for _, id := range c.ids {
		d := c.byID[id].Difficulty
		if d >= minDifficulty && d <= maxDifficulty {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return Pattern{}, fmt.Errorf("no patterns with difficulty between %d and %d", minDifficulty, maxDifficulty)
	}
	return c.byID[candidates[rng.Intn(len(candidates))]], nil
}

func (c *Catalog) All() []Pattern {
	out := make([]Pattern, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) ByDifficulty(d int) []Pattern {
	var out []Pattern
	for _, id := range c.ids {
		if c.byID[id].Difficulty == d {
			out = append(out, c.byID[id])
		}
	}
	return out
}

func (c *Catalog) Len() int { return len(c.ids) }

// RecommendedAttackers suggests a starting attacker count from the
// pattern's difficulty and footprint, clamped to [3, 10].
func RecommendedAttackers(p Pattern) int {
	w, h := Dimensions(p.RLE)
	base := p.Difficulty * 2
	if base < 3 {
		base = 3
	}
	n := base + (w*h)/25
	if n < 3 {
		n = 3
	}
	if n > 10 {
		n = 10
	}
	return n
}
