package arena

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mshel/cycles/internal/engine"
	"github.com/Mshel/cycles/internal/game"
	"github.com/stretchr/testify/require"
)

func smallMatchConfig() MatchConfig {
	return MatchConfig{
		Width:       5,
		Height:      5,
		MaxPlayers:  4,
		MaxFrames:   20,
		MoveTimeout: time.Second,
	}
}

func newTestMatch(t *testing.T, config MatchConfig, agents ...Agent) *Match {
	t.Helper()
	m, err := NewMatch(config, agents, rand.New(rand.NewSource(3)), quietLogger())
	require.NoError(t, err)
	return m
}

func east(n int) []game.Direction {
	moves := make([]game.Direction, n)
	for i := range moves {
		moves[i] = game.East
	}
	return moves
}

func TestMatchHeadOnIsADraw(t *testing.T) {
	a := &scriptedAgent{name: "A", moves: []game.Direction{game.East}}
	b := &scriptedAgent{name: "B", moves: []game.Direction{game.West}}
	m := newTestMatch(t, smallMatchConfig(), a, b)
	placeSeats(t, m,
		[]game.Coordinate{{X: 0, Y: 2}, {X: 4, Y: 2}},
		[]game.Direction{game.East, game.West})

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReasonNoSurvivors, result.Reason)
	require.Empty(t, result.Winner)
	require.Equal(t, 2, result.Frames)
	require.Equal(t, []Placement{
		{Name: "A", Place: 1, Frames: 2},
		{Name: "B", Place: 1, Frames: 2},
	}, result.Placements)
	require.Equal(t, 25, m.grid.FreeCount(), "dead trails are cleared")
}

func TestMatchWallEliminatesAndLastStandingWins(t *testing.T) {
	a := &scriptedAgent{name: "A", moves: []game.Direction{game.North}}
	b := &scriptedAgent{name: "B", moves: []game.Direction{game.West}}
	frames := &frameLog{}
	m := newTestMatch(t, smallMatchConfig(), a, b)
	m.AddListener(frames)
	placeSeats(t, m,
		[]game.Coordinate{{X: 0, Y: 0}, {X: 4, Y: 4}},
		[]game.Direction{game.North, game.West})

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReasonLastStanding, result.Reason)
	require.Equal(t, "B", result.Winner)
	require.Equal(t, 1, result.Frames)
	require.Equal(t, []Placement{
		{Name: "B", Place: 1, Frames: 1, Survived: true},
		{Name: "A", Place: 2, Frames: 1},
	}, result.Placements)

	require.Len(t, frames.frames, 2)
	first := frames.frames[0]
	require.Equal(t, 0, first.State.Frame)
	require.Equal(t, []string{"A"}, first.Eliminated)
	require.Equal(t, map[string]game.Direction{"A": game.North, "B": game.West}, first.Moves)

	last := frames.frames[1]
	require.NotNil(t, last.Result)
	require.Equal(t, result.MatchID, last.Result.MatchID)
	require.Len(t, last.State.Players, 1)
	require.Equal(t, game.Coordinate{X: 3, Y: 4}, last.State.Players[0].Head)
	require.True(t, last.State.Grid.IsFree(game.Coordinate{X: 0, Y: 0}), "A's trail is cleared")
	require.False(t, last.State.Grid.IsFree(game.Coordinate{X: 4, Y: 4}), "B's trail stays")

	require.Equal(t, result.MatchID, a.started)
	require.NotNil(t, b.ended)
	require.Equal(t, "B", b.ended.Winner)
}

func TestMatchTrailCollision(t *testing.T) {
	a := &scriptedAgent{name: "A", moves: []game.Direction{game.East}}
	b := &scriptedAgent{name: "B", moves: []game.Direction{game.North}}
	m := newTestMatch(t, smallMatchConfig(), a, b)
	placeSeats(t, m,
		[]game.Coordinate{{X: 0, Y: 1}, {X: 1, Y: 3}},
		[]game.Direction{game.East, game.North})

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "A", result.Winner)
	require.Equal(t, 2, result.Frames)
	require.Equal(t, Placement{Name: "B", Place: 2, Frames: 2}, result.Placements[1])
}

func TestMatchFrameLimitIsADraw(t *testing.T) {
	config := smallMatchConfig()
	config.MaxFrames = 2
	a := &scriptedAgent{name: "A", moves: east(3)}
	b := &scriptedAgent{name: "B", moves: east(3)}
	m := newTestMatch(t, config, a, b)
	placeSeats(t, m,
		[]game.Coordinate{{X: 0, Y: 0}, {X: 0, Y: 4}},
		[]game.Direction{game.East, game.East})

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReasonFrameLimit, result.Reason)
	require.Empty(t, result.Winner)
	require.Equal(t, 2, result.Frames)
	for _, p := range result.Placements {
		require.True(t, p.Survived)
		require.Equal(t, 1, p.Place)
	}
	require.Equal(t, 2, a.Calls())
}

func TestMatchFailedDecisionKeepsDirection(t *testing.T) {
	config := smallMatchConfig()
	config.MaxFrames = 3
	a := &scriptedAgent{name: "A", err: errors.New("lost")}
	b := &scriptedAgent{name: "B", moves: east(3)}
	frames := &frameLog{}
	m := newTestMatch(t, config, a, b)
	m.AddListener(frames)
	placeSeats(t, m,
		[]game.Coordinate{{X: 0, Y: 0}, {X: 0, Y: 4}},
		[]game.Direction{game.South, game.East})

	_, err := m.Run(context.Background())
	require.NoError(t, err)
	for _, frame := range frames.frames[:3] {
		require.Equal(t, game.South, frame.Moves["A"])
	}
	require.Equal(t, game.Coordinate{X: 0, Y: 3}, frames.frames[3].State.Players[0].Head)
}

func TestMatchLateDecisionKeepsDirection(t *testing.T) {
	config := smallMatchConfig()
	config.MaxFrames = 2
	config.MoveTimeout = 20 * time.Millisecond
	a := &scriptedAgent{name: "A", block: true}
	b := &scriptedAgent{name: "B", moves: east(2)}
	m := newTestMatch(t, config, a, b)
	placeSeats(t, m,
		[]game.Coordinate{{X: 2, Y: 0}, {X: 0, Y: 4}},
		[]game.Direction{game.South, game.East})

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReasonFrameLimit, result.Reason)
	require.Equal(t, game.Coordinate{X: 2, Y: 2}, m.seats[0].player.Head)
}

func TestMatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &scriptedAgent{name: "A", moves: east(1)}
	b := &scriptedAgent{name: "B", moves: east(1)}
	m := newTestMatch(t, smallMatchConfig(), a, b)

	result, err := m.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, ReasonCancelled, result.Reason)
	require.NotNil(t, a.ended, "agents hear about the end even when cancelled")
}

// lingeringAgent keeps working for a while after its decision is cancelled.
type lingeringAgent struct {
	name     string
	finished atomic.Bool
}

func (a *lingeringAgent) Name() string { return a.name }

func (a *lingeringAgent) Decide(ctx context.Context, state game.GameState) (game.Direction, error) {
	<-ctx.Done()
	time.Sleep(50 * time.Millisecond)
	a.finished.Store(true)
	return game.NoDirection, ctx.Err()
}

func TestMatchWaitsForLateDecisions(t *testing.T) {
	config := smallMatchConfig()
	config.MoveTimeout = time.Minute
	a := &lingeringAgent{name: "A"}
	b := &scriptedAgent{name: "B", moves: east(1)}
	m := newTestMatch(t, config, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, a.finished.Load(), "no decide call outlives the match")
}

func TestNewMatchValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := &scriptedAgent{name: "A"}

	_, err := NewMatch(smallMatchConfig(), []Agent{a}, rng, quietLogger())
	require.Error(t, err)

	_, err = NewMatch(smallMatchConfig(), []Agent{a, &scriptedAgent{name: "A"}}, rng, quietLogger())
	require.ErrorContains(t, err, "duplicate")

	config := smallMatchConfig()
	config.MaxPlayers = 2
	_, err = NewMatch(config, []Agent{a, &scriptedAgent{name: "B"}, &scriptedAgent{name: "C"}}, rng, quietLogger())
	require.Error(t, err)
}

func TestNewMatchSpawnsDistinctCells(t *testing.T) {
	var agents []Agent
	for _, name := range []string{"A", "B", "C", "D"} {
		agents = append(agents, &scriptedAgent{name: name})
	}
	m := newTestMatch(t, smallMatchConfig(), agents...)

	seen := map[game.Coordinate]bool{}
	for i, s := range m.seats {
		require.False(t, seen[s.player.Head])
		seen[s.player.Head] = true
		require.Equal(t, i+1, s.player.Color)
		require.Equal(t, s.player.Color, m.grid.CellAt(s.player.Head))
		require.True(t, s.direction.IsValid())
	}
	require.Equal(t, 21, m.grid.FreeCount())
}

func TestHouseBotsPlayAFullMatch(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	config := MatchConfig{Width: 12, Height: 8, MaxPlayers: 4, MaxFrames: 300, MoveTimeout: time.Second}

	var agents []Agent
	for _, name := range []string{"ada", "bob", "cyd"} {
		bot, err := NewHouseBot(name, engine.DefaultConfig(), rand.New(rand.NewSource(rng.Int63())), quietLogger())
		require.NoError(t, err)
		agents = append(agents, bot)
	}

	m, err := NewMatch(config, agents, rng, quietLogger())
	require.NoError(t, err)

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Placements, 3)
	require.Equal(t, 1, result.Placements[0].Place)
	require.LessOrEqual(t, result.Frames, config.MaxFrames)
	if result.Winner != "" {
		require.Equal(t, ReasonLastStanding, result.Reason)
		require.Equal(t, result.Winner, result.Placements[0].Name)
	}
}
