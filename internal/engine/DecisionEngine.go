package engine

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/Mshel/cycles/internal/game"
	"github.com/charmbracelet/log"
)

var (
	// ErrRetryExhausted means no legal move was found within MaxAttempts. The
	// agent is boxed in; callers must not send a guess.
	ErrRetryExhausted = errors.New("no legal move found")
	// ErrSelfNotFound means the snapshot has no player with the engine's name,
	// i.e. the agent has been eliminated.
	ErrSelfNotFound = errors.New("agent not in roster")
	// ErrMissingGrid means the snapshot carries no board to decide on.
	ErrMissingGrid = errors.New("snapshot has no grid")
)

// DecisionEngine holds the per-session state of one agent. It is not safe for
// concurrent use; one engine decides one frame at a time.
type DecisionEngine struct {
	name              string
	config            Config
	fallback          FallbackStrategy
	previousDirection game.Direction
	inertia           int
	logger            *log.Logger

	// pipeline stages, swapped out in tests
	findNearestOpponent func(game.GameState, game.Player) (game.Coordinate, game.Player, bool)
	predictNextHead     func(GridQuery, game.Coordinate) game.Coordinate
	approach            func(GridQuery, game.Coordinate, game.Coordinate) game.Direction
}

// NewDecisionEngine creates a session for the agent called name. rng draws the
// inertia once and feeds the inertia policy; a nil logger uses the default one.
func NewDecisionEngine(name string, config Config, rng *rand.Rand, logger *log.Logger) (*DecisionEngine, error) {
	if name == "" {
		return nil, errors.New("agent name is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	fallback, err := config.newFallback(rng)
	if err != nil {
		return nil, err
	}

	return &DecisionEngine{
		name:                name,
		config:              config,
		fallback:            fallback,
		previousDirection:   game.NoDirection,
		inertia:             rng.Intn(config.MaxInertia + 1),
		logger:              logger.With("bot", name),
		findNearestOpponent: FindNearestOpponent,
		predictNextHead:     PredictNextHead,
		approach:            Approach,
	}, nil
}

func (e *DecisionEngine) Name() string                      { return e.name }
func (e *DecisionEngine) Inertia() int                      { return e.inertia }
func (e *DecisionEngine) PreviousDirection() game.Direction { return e.previousDirection }

// Decide returns a legal move for the current frame.
//
// The agent goes after the nearest rival's predicted next cell. If that move is
// illegal, or there is no rival, the fallback strategy is consulted until it
// yields a legal move or MaxAttempts is spent, in which case ErrRetryExhausted
// is returned.
func (e *DecisionEngine) Decide(state game.GameState) (game.Direction, error) {
	if state.Grid == nil {
		return game.NoDirection, ErrMissingGrid
	}

	self, ok := state.FindPlayer(e.name)
	if !ok {
		return game.NoDirection, fmt.Errorf("%w: %s at frame %d", ErrSelfNotFound, e.name, state.Frame)
	}

	var grid GridQuery = state.Grid
	var direction game.Direction

	nearestHead, nearestOpponent, found := e.findNearestOpponent(state, self)
	if found {
		predictedPosition := e.predictNextHead(grid, nearestHead)
		direction = e.approach(grid, self.Head, predictedPosition)

		e.logger.Debug("Targeting opponent",
			"frame", state.Frame,
			"opponent", nearestOpponent.Name,
			"opponent_head", nearestHead,
			"predicted", predictedPosition,
			"from", self.Head,
			"direction", direction)
	} else {
		direction = e.fallBackMove(grid, self.Head)
	}

	attempts := 0
	for !IsLegalMove(grid, self.Head, direction) {
		if attempts >= e.config.MaxAttempts {
			e.logger.Error("Failed to find a valid move", "frame", state.Frame, "attempts", attempts, "head", self.Head)
			return game.NoDirection, fmt.Errorf("%w: %s after %d attempts at frame %d", ErrRetryExhausted, e.name, attempts, state.Frame)
		}

		direction = e.fallBackMove(grid, self.Head)
		attempts++
	}

	e.previousDirection = direction
	return direction, nil
}

func (e *DecisionEngine) fallBackMove(grid GridQuery, head game.Coordinate) game.Direction {
	e.logger.Info("Making a fallback move", "head", head, "previous", e.previousDirection)

	safeDirection := e.fallback.ChooseSafeDirection(grid, head, e.previousDirection, e.inertia)
	// Only a move the agent can make becomes the direction it keeps.
	if safeDirection != e.previousDirection && IsLegalMove(grid, head, safeDirection) {
		e.previousDirection = safeDirection
	}
	return safeDirection
}
