package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Mshel/cycles/internal/arena"
	"github.com/Mshel/cycles/internal/game"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	standings []arena.Standing
	matches   int
	err       error
}

func (s fakeSource) TopPlayers(ctx context.Context, limit, offset int) ([]arena.Standing, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.standings[:min(limit, len(s.standings))], nil
}

func (s fakeSource) TotalMatches(ctx context.Context) (int, error) {
	return s.matches, s.err
}

func testFrame(t *testing.T) arena.Frame {
	t.Helper()
	state, err := game.ParseBoard(12,
		"aaA..",
		".....",
		"..Bb#",
	)
	require.NoError(t, err)
	return arena.Frame{
		MatchID: "0123456789abcdef",
		State:   state,
		Moves:   map[string]game.Direction{"A": game.East, "B": game.West},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRenderMap(t *testing.T) {
	rendered := RenderMap(testFrame(t), 80, 40)
	lines := strings.Split(rendered, "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "──▶")
	require.Contains(t, lines[2], "◀─▒")

	cropped := RenderMap(testFrame(t), 2, 1)
	require.NotContains(t, cropped, "\n")
	require.NotContains(t, cropped, "▶")
}

func TestSpectatorShowsFrames(t *testing.T) {
	frames := make(chan arena.Frame, 2)
	m := NewSpectatorModel(frames, nil, 100, 30)
	require.Contains(t, m.View(), "Waiting for the next match")

	frames <- testFrame(t)
	msg := m.Init()()
	updated, cmd := m.Update(msg)
	m = updated.(SpectatorModel)
	require.NotNil(t, cmd, "keeps listening")

	view := m.View()
	require.Contains(t, view, "01234567")
	require.Contains(t, view, "Frame: 12")
	require.Contains(t, view, "Alive (2)")

	result := arena.Result{MatchID: "m", Reason: arena.ReasonNoSurvivors, Frames: 13}
	final := testFrame(t)
	final.Result = &result
	updated, _ = m.Update(FrameMsg(final))
	m = updated.(SpectatorModel)
	require.Contains(t, m.View(), "Winner: draw")

	close(frames)
	updated, _ = m.Update(cmd())
	m = updated.(SpectatorModel)
	require.Contains(t, m.View(), "Feed ended")
}

func TestSpectatorLeaderboardToggle(t *testing.T) {
	source := fakeSource{
		standings: []arena.Standing{
			{Name: "ada", Matches: 4, Wins: 3, AveragePlace: 1.25},
			{Name: "bob", Matches: 4, Wins: 1, AveragePlace: 1.75},
		},
		matches: 4,
	}
	m := NewSpectatorModel(nil, source, 100, 30)

	updated, cmd := m.Update(key("tab"))
	m = updated.(SpectatorModel)
	require.Equal(t, StateLeaderboard, m.state)
	require.NotNil(t, cmd)

	updated, _ = m.Update(cmd())
	m = updated.(SpectatorModel)
	view := m.View()
	require.Contains(t, view, "LEADERBOARD")
	require.Contains(t, view, "ada")
	require.Contains(t, view, "1.25")
	require.Contains(t, view, "4 matches played")

	updated, _ = m.Update(key("esc"))
	m = updated.(SpectatorModel)
	require.Equal(t, StateWatching, m.state)

	_, cmd = m.Update(key("q"))
	require.Equal(t, tea.Quit(), cmd())
}

func TestLeaderboardErrors(t *testing.T) {
	lb := NewLeaderboardModel(fakeSource{err: errors.New("database is locked")}, 80, 24)
	lb, _ = lb.Update(lb.Refresh(context.Background())())
	require.Contains(t, lb.View(), "database is locked")

	lb = NewLeaderboardModel(nil, 80, 24)
	lb, _ = lb.Update(lb.Refresh(context.Background())())
	require.Contains(t, lb.View(), "no result store")

	lb = NewLeaderboardModel(fakeSource{}, 80, 24)
	require.Contains(t, lb.View(), "Loading")
	lb, _ = lb.Update(lb.Refresh(context.Background())())
	require.Contains(t, lb.View(), "No matches played yet")
}

func TestLeaderboardMaxRows(t *testing.T) {
	source := fakeSource{
		standings: []arena.Standing{
			{Name: "ada", Matches: 3, Wins: 3, AveragePlace: 1},
			{Name: "bob", Matches: 3, Wins: 0, AveragePlace: 2},
			{Name: "cy", Matches: 3, Wins: 0, AveragePlace: 3},
		},
		matches: 3,
	}

	lb := NewLeaderboardModel(source, 80, 40).WithMaxRows(2)
	lb, _ = lb.Update(lb.Refresh(context.Background())())
	view := lb.View()
	require.Contains(t, view, "ada")
	require.Contains(t, view, "bob")
	require.NotContains(t, view, "cy")

	// a short screen wins over the cap
	lb = NewLeaderboardModel(source, 80, 14).WithMaxRows(50)
	require.Equal(t, 5, lb.limit)
}
