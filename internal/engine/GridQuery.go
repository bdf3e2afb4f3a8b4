// Package engine picks one legal move per frame for a light-cycle agent: chase
// the nearest rival's predicted next cell, and fall back to the direction with
// the most reachable room when the chase is not safe.
package engine

import "github.com/Mshel/cycles/internal/game"

// GridQuery is the read-only view of the board the engine works against.
// A cell value of 0 is free; anything else is occupied.
type GridQuery interface {
	IsInside(c game.Coordinate) bool
	CellAt(c game.Coordinate) int
}

func isFree(grid GridQuery, c game.Coordinate) bool {
	return grid.IsInside(c) && grid.CellAt(c) == game.FreeCell
}

// IsLegalMove reports whether moving from head in direction lands on an
// in-bounds free cell.
func IsLegalMove(grid GridQuery, head game.Coordinate, direction game.Direction) bool {
	if !direction.IsValid() {
		return false
	}
	return isFree(grid, head.Add(direction.Delta()))
}

// LegalDirections returns the legal moves from head in north, east, south, west order.
func LegalDirections(grid GridQuery, head game.Coordinate) []game.Direction {
	legal := make([]game.Direction, 0, len(game.Directions))
	for _, dir := range game.Directions {
		if IsLegalMove(grid, head, dir) {
			legal = append(legal, dir)
		}
	}
	return legal
}
