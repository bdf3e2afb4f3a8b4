package engine

import (
	"math"

	"github.com/Mshel/cycles/internal/game"
)

// FindNearestOpponent returns the head of the rival closest to self by
// Manhattan distance. Ties go to whoever comes first in the roster. ok is false
// when self is alone.
func FindNearestOpponent(state game.GameState, self game.Player) (game.Coordinate, game.Player, bool) {
	minDist := math.MaxInt
	var nearest game.Player
	found := false

	for _, otherPlayer := range state.Players {
		if otherPlayer.Name == self.Name {
			continue
		}

		dist := game.GetManhattanDistance(self.Head, otherPlayer.Head)
		if dist < minDist {
			minDist = dist
			nearest = otherPlayer
			found = true
		}
	}

	if !found {
		return game.Coordinate{}, game.Player{}, false
	}
	return nearest.Head, nearest, true
}
