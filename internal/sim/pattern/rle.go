package pattern

// Position is a grid coordinate pair. Value type, never shared by pointer.
type Position struct {
	X int
	Y int
}

// Decode expands a run-length-encoded pattern into the set of defender
// positions that fall inside a width x height grid.
//
// Grammar: a run of digits accumulates a repeat count (default 1).
// '$' advances y by the count and resets x, 'b' skips count cells,
// 'o' marks count cells, '!' ends the pattern. Cells marked outside the
// grid are dropped silently; unknown characters are ignored.
func Decode(text string, width, height int) []Position {
	var out []Position
	x, y := 0, 0
	count := 0
	hasCount := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= '0' && c <= '9' {
			count = count*10 + int(c-'0')
			hasCount = true
			continue
		}

		repeat := 1
		if hasCount {
			repeat = count
		}
		count = 0
		hasCount = false

		switch c {
		case '$':
			y += repeat
			x = 0
		case 'b':
			x += repeat
		case 'o':
			for j := 0; j < repeat; j++ {
				if x >= 0 && x < width && y >= 0 && y < height {
					out = append(out, Position{X: x, Y: y})
				}
				x++
			}
		case '!':
			return out
		}
	}
	return out
}

// Dimensions walks an RLE string and reports the bounding box it covers.
func Dimensions(text string) (width, height int) {
	maxX, maxY := 0, 0
	x, y := 0, 0
	count := 0
	hasCount := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= '0' && c <= '9' {
			count = count*10 + int(c-'0')
			hasCount = true
			continue
		}

		repeat := 1
		if hasCount {
			repeat = count
		}
		count = 0
		hasCount = false

		switch c {
		case '$':
			y += repeat
			x = 0
		case 'b', 'o':
			x += repeat
		case '!':
			return maxX, maxY + 1
		}
		if x > maxX {
			maxX = x
		}
		if y > maxY {
			maxY = y
		}
	}
	return maxX, maxY + 1
}
