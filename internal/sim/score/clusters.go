package score

// CountClusters returns the number of maximal 8-connected regions of
// kind in the grid (row-major, grid[y][x]). The flood fill uses an
// explicit stack so large grids cannot blow the call stack. Only the
// component count is reported, so traversal order does not matter.
func CountClusters[T comparable](grid [][]T, kind T) int {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return 0
	}
	height := len(grid)
	width := len(grid[0])

	visited := make([]bool, width*height)
	idx := func(x, y int) int { return y*width + x }

	clusters := 0
	var stack [][2]int
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if grid[y][x] != kind || visited[idx(x, y)] {
				continue
			}
			clusters++
			stack = append(stack[:0], [2]int{x, y})
			visited[idx(x, y)] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := p[0]+dx, p[1]+dy
						if nx < 0 || nx >= width || ny < 0 || ny >= height {
							continue
						}
						if grid[ny][nx] != kind || visited[idx(nx, ny)] {
							continue
						}
						visited[idx(nx, ny)] = true
						stack = append(stack, [2]int{nx, ny})
					}
				}
			}
		}
	}
	return clusters
}
