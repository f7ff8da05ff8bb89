package engine

import "fmt"

// Cell is the closed three-state cell enumeration.
type Cell uint8

const (
	Empty    Cell = 0
	Defender Cell = 1
	Attacker Cell = 2
)

// Grid is a fixed-dimension cell matrix. Dimensions never change after
// construction and every access is bounds-checked.
type Grid struct {
	width  int
	height int
	cells  []Cell
}

func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: grid dimensions %dx%d", ErrInvalidArgument, width, height)
	}
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

func (g *Grid) At(x, y int) Cell {
	if !g.InBounds(x, y) {
		panic(fmt.Sprintf("grid access out of bounds: (%d,%d) in %dx%d", x, y, g.width, g.height))
	}
	return g.cells[y*g.width+x]
}

func (g *Grid) Set(x, y int, c Cell) {
	if !g.InBounds(x, y) {
		panic(fmt.Sprintf("grid write out of bounds: (%d,%d) in %dx%d", x, y, g.width, g.height))
	}
	g.cells[y*g.width+x] = c
}

func (g *Grid) Count(kind Cell) int {
	n := 0
	for _, c := range g.cells {
		if c == kind {
			n++
		}
	}
	return n
}

func (g *Grid) Clone() *Grid {
	cp := &Grid{width: g.width, height: g.height, cells: make([]Cell, len(g.cells))}
	copy(cp.cells, g.cells)
	return cp
}

// Snapshot returns a row-major deep copy decoupled from the live grid.
func (g *Grid) Snapshot() [][]Cell {
	out := make([][]Cell, g.height)
	for y := 0; y < g.height; y++ {
		row := make([]Cell, g.width)
		copy(row, g.cells[y*g.width:(y+1)*g.width])
		out[y] = row
	}
	return out
}

// diff counts cells that differ between two same-sized grids.
func (g *Grid) diff(other *Grid) int {
	n := 0
	for i := range g.cells {
		if g.cells[i] != other.cells[i] {
			n++
		}
	}
	return n
}

// positionsOf lists cells of the given kind in row-major (y, x) order.
// This order is the documented deterministic tie-break for every
// iteration the round algorithm performs.
func (g *Grid) positionsOf(kind Cell) []Position {
	var out []Position
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if g.cells[y*g.width+x] == kind {
				out = append(out, Position{X: x, Y: y})
			}
		}
	}
	return out
}
