package arena

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
)

// Arena plays matches back to back until its context ends.
type Arena struct {
	config      Config
	lobby       *Lobby
	store       *ResultStore
	broadcaster *Broadcaster
	rng         *rand.Rand
	logger      *log.Logger
}

// NewArena wires the collaborators together. store may be nil to skip
// persisting results.
func NewArena(config Config, lobby *Lobby, store *ResultStore, broadcaster *Broadcaster, rng *rand.Rand, logger *log.Logger) *Arena {
	if logger == nil {
		logger = log.Default()
	}
	return &Arena{
		config:      config,
		lobby:       lobby,
		store:       store,
		broadcaster: broadcaster,
		rng:         rng,
		logger:      logger,
	}
}

// Run loops RunMatch with an intermission in between. It returns nil once ctx
// is cancelled.
func (a *Arena) Run(ctx context.Context) error {
	for {
		_, err := a.RunMatch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, ErrLobbyClosed) {
				return nil
			}
			a.logger.Error("Match failed", "error", err)
		}

		select {
		case <-time.After(a.config.Intermission):
		case <-ctx.Done():
			return nil
		}
	}
}

// RunMatch waits for enough players, plays one match and stores the result.
func (a *Arena) RunMatch(ctx context.Context) (Result, error) {
	agents, err := a.lobby.NextMatch(ctx)
	if err != nil {
		return Result{}, err
	}

	match, err := NewMatch(a.config.Match, agents, a.rng, a.logger)
	if err != nil {
		return Result{}, err
	}
	if a.broadcaster != nil {
		match.AddListener(a.broadcaster)
	}

	var recorder *ReplayRecorder
	if a.config.ReplayDir != "" {
		recorder, err = NewReplayRecorder(a.config.ReplayDir, match.ID())
		if err != nil {
			a.logger.Warn("Replay disabled for match", "match", match.ID(), "error", err)
		} else {
			match.AddListener(recorder)
		}
	}

	result, runErr := match.Run(ctx)

	if recorder != nil {
		path, rows, err := recorder.Finalize()
		if err != nil {
			a.logger.Error("Could not write replay", "match", match.ID(), "error", err)
		} else if path != "" {
			a.logger.Info("Replay written", "path", path, "rows", rows)
		}
	}

	if a.store != nil && runErr == nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.store.SaveResult(saveCtx, result); err != nil {
			a.logger.Error("Could not save result", "match", result.MatchID, "error", err)
		}
	}

	return result, runErr
}
