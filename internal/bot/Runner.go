// Package bot runs a decision engine against a live connection.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mshel/cycles/internal/engine"
	"github.com/Mshel/cycles/internal/game"
	"github.com/charmbracelet/log"
)

// Connection is the arena as the bot sees it.
type Connection interface {
	ReceiveSnapshot(ctx context.Context) (game.GameState, error)
	SendMove(frame int, direction game.Direction) error
	IsActive() bool
}

type Decider interface {
	Decide(state game.GameState) (game.Direction, error)
}

// Stats summarises one run.
type Stats struct {
	Frames  int
	Moves   int
	Skipped int
}

type Runner struct {
	conn    Connection
	decider Decider
	logger  *log.Logger
}

func NewRunner(conn Connection, decider Decider, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{conn: conn, decider: decider, logger: logger}
}

// Run plays until the connection goes inactive or ctx is cancelled. A frame in
// which the agent is missing from the roster is skipped. ErrRetryExhausted is
// returned as is; ending the process is up to the caller.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	for r.conn.IsActive() {
		state, err := r.conn.ReceiveSnapshot(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			if !r.conn.IsActive() {
				r.logger.Info("Connection closed", "reason", err)
				return stats, nil
			}
			return stats, fmt.Errorf("receive snapshot: %w", err)
		}
		stats.Frames++

		direction, err := r.decider.Decide(state)
		if errors.Is(err, engine.ErrSelfNotFound) {
			r.logger.Debug("Not in roster, skipping frame", "frame", state.Frame)
			stats.Skipped++
			continue
		}
		if err != nil {
			return stats, err
		}

		if err := r.conn.SendMove(state.Frame, direction); err != nil {
			if !r.conn.IsActive() {
				return stats, nil
			}
			return stats, fmt.Errorf("send move for frame %d: %w", state.Frame, err)
		}
		stats.Moves++
	}

	return stats, nil
}
