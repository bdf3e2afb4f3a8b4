package engine

import (
	"math"

	"github.com/Mshel/cycles/internal/game"
)

// approachOrder is the tie-break order for Approach. It differs
// from game.Directions.
var approachOrder = [4]game.Direction{game.North, game.South, game.East, game.West}

// Approach picks the legal move whose destination is closest to target.
// When no move is legal it returns North, which the caller must re-validate.
func Approach(grid GridQuery, selfHead game.Coordinate, target game.Coordinate) game.Direction {
	bestDir := game.North
	minDist := math.MaxInt

	for _, dir := range approachOrder {
		nextPos := selfHead.Add(dir.Delta())
		if !isFree(grid, nextPos) {
			continue
		}

		dist := game.GetManhattanDistance(nextPos, target)
		if dist < minDist {
			minDist = dist
			bestDir = dir
		}
	}

	return bestDir
}
