package engine

import "github.com/Mshel/cycles/internal/game"

// PredictNextHead guesses where a rival moves next: the first legal cell in
// north, east, south, west order. A boxed-in rival is predicted to stay put.
// It is a one-ply guess that ignores the rival's own strategy.
func PredictNextHead(grid GridQuery, opponentHead game.Coordinate) game.Coordinate {
	for _, dir := range game.Directions {
		candidate := opponentHead.Add(dir.Delta())
		if isFree(grid, candidate) {
			return candidate
		}
	}
	return opponentHead
}
