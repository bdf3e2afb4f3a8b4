package engine

import (
	"math/rand"

	"github.com/Mshel/cycles/internal/game"
)

// FallbackStrategy picks a replacement move when there is nobody to chase or
// the chase move is illegal. Implementations return North when no direction
// is legal at all.
type FallbackStrategy interface {
	ChooseSafeDirection(grid GridQuery, selfHead game.Coordinate, previous game.Direction, inertia int) game.Direction
}

// AreaFallback moves toward the neighbour with the largest reachable area.
// Ties keep north, east, south, west order.
type AreaFallback struct{}

func (s *AreaFallback) ChooseSafeDirection(grid GridQuery, selfHead game.Coordinate, previous game.Direction, inertia int) game.Direction {
	safeDirection := game.North
	maxArea := -1

	for _, dir := range LegalDirections(grid, selfHead) {
		accessibleArea := ReachableArea(grid, selfHead.Add(dir.Delta()))
		if accessibleArea > maxArea {
			maxArea = accessibleArea
			safeDirection = dir
		}
	}

	return safeDirection
}

// InertiaFallback draws a direction at random, repeating the previous one with
// a weight that grows with inertia. A previous direction that is blocked is
// never repeated. It ignores reachable area; the engine's retry loop discards
// illegal draws.
type InertiaFallback struct {
	rng *rand.Rand
}

func NewInertiaFallback(rng *rand.Rand) *InertiaFallback {
	return &InertiaFallback{rng: rng}
}

func (s *InertiaFallback) ChooseSafeDirection(grid GridQuery, selfHead game.Coordinate, previous game.Direction, inertia int) game.Direction {
	if len(LegalDirections(grid, selfHead)) == 0 {
		return game.North
	}

	if !IsLegalMove(grid, selfHead, previous) {
		return game.Directions[s.rng.Intn(len(game.Directions))]
	}

	draw := s.rng.Float64() * float64(3+max(inertia, 0))
	if draw > 3 {
		return previous
	}
	// Spread [0, 3] evenly over the four directions.
	return game.Directions[min(int(draw*4/3), 3)]
}
