package engine

import "github.com/Mshel/cycles/internal/game"

// ReachableArea counts the free cells in the 4-connected free region that
// contains start, start included. An occupied or out-of-bounds start counts 0.
//
// Neighbours are bounds and occupancy checked before they are queued, so the
// queue never holds more than one entry per free cell.
func ReachableArea(grid GridQuery, start game.Coordinate) int {
	if !isFree(grid, start) {
		return 0
	}

	visited := map[game.Coordinate]struct{}{start: {}}
	q := []game.Coordinate{start}

	for len(q) > 0 {
		current := q[0]
		q = q[1:]

		for _, dir := range game.Directions {
			next := current.Add(dir.Delta())
			if _, alreadyVisited := visited[next]; alreadyVisited {
				continue
			}
			if !isFree(grid, next) {
				continue
			}

			visited[next] = struct{}{}
			q = append(q, next)
		}
	}

	return len(visited)
}
