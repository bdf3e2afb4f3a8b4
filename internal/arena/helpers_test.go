package arena

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/Mshel/cycles/internal/game"
	"github.com/charmbracelet/log"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// scriptedAgent plays a fixed list of moves, then repeats the last one.
type scriptedAgent struct {
	name  string
	moves []game.Direction
	err   error
	block bool

	mu      sync.Mutex
	calls   int
	started string
	ended   *Result
}

func (a *scriptedAgent) Name() string { return a.name }

func (a *scriptedAgent) Decide(ctx context.Context, state game.GameState) (game.Direction, error) {
	a.mu.Lock()
	call := a.calls
	a.calls++
	a.mu.Unlock()

	if a.block {
		<-ctx.Done()
		return game.NoDirection, ctx.Err()
	}
	if a.err != nil {
		return game.NoDirection, a.err
	}
	if len(a.moves) == 0 {
		return game.NoDirection, nil
	}
	return a.moves[min(call, len(a.moves)-1)], nil
}

func (a *scriptedAgent) MatchStarted(matchID string) { a.started = matchID }

func (a *scriptedAgent) MatchEnded(result Result) { a.ended = &result }

func (a *scriptedAgent) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// frameLog collects published frames.
type frameLog struct {
	frames []Frame
}

func (l *frameLog) OnFrame(frame Frame) {
	l.frames = append(l.frames, frame)
}

// placeSeats moves every seat to a known head and direction so tests do not
// depend on random spawns.
func placeSeats(t *testing.T, m *Match, heads []game.Coordinate, directions []game.Direction) {
	t.Helper()
	if len(heads) != len(m.seats) || len(directions) != len(m.seats) {
		t.Fatalf("need %d heads and directions", len(m.seats))
	}
	m.grid = game.NewGrid(m.config.Width, m.config.Height)
	for i, s := range m.seats {
		s.player.Head = heads[i]
		s.direction = directions[i]
		m.grid.Set(heads[i], s.player.Color)
	}
}
