// Package ui renders matches for spectators in the terminal.
package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Mshel/cycles/internal/arena"
	"github.com/Mshel/cycles/internal/game"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type viewState int

const (
	StateWatching viewState = iota
	StateLeaderboard
)

var (
	mapViewStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 0)

	statusPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("8")).
				Padding(1, 2)

	statusPanelWidth = 32
)

// FrameMsg carries one frame from the feed.
type FrameMsg arena.Frame

// FeedClosedMsg is sent when the frame feed ends.
type FeedClosedMsg struct{}

// SpectatorModel shows the live board with a status panel, and the
// leaderboard on tab.
type SpectatorModel struct {
	frames <-chan arena.Frame

	frame      *arena.Frame
	lastResult *arena.Result
	feedClosed bool

	state       viewState
	leaderboard LeaderboardModel

	ScreenWidth  int
	ScreenHeight int
}

// NewSpectatorModel watches frames. source may be nil, in which case the
// leaderboard is unavailable.
func NewSpectatorModel(frames <-chan arena.Frame, source LeaderboardSource, screenWidth int, screenHeight int) SpectatorModel {
	return SpectatorModel{
		frames:       frames,
		state:        StateWatching,
		leaderboard:  NewLeaderboardModel(source, screenWidth, screenHeight),
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
	}
}

// WithLeaderboardSize caps the leaderboard at n players.
func (m SpectatorModel) WithLeaderboardSize(n int) SpectatorModel {
	m.leaderboard = m.leaderboard.WithMaxRows(n)
	return m
}

func (m SpectatorModel) Init() tea.Cmd {
	return m.listenForFrames()
}

func (m SpectatorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ScreenWidth, m.ScreenHeight = msg.Width, msg.Height
		m.leaderboard = m.leaderboard.Resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if m.state == StateWatching {
				m.state = StateLeaderboard
				return m, m.leaderboard.Refresh(context.Background())
			}
			m.state = StateWatching
			return m, nil
		case "esc":
			m.state = StateWatching
			return m, nil
		}
		if m.state == StateLeaderboard {
			var cmd tea.Cmd
			m.leaderboard, cmd = m.leaderboard.Update(msg)
			return m, cmd
		}
		return m, nil

	case LeaderboardMsg:
		var cmd tea.Cmd
		m.leaderboard, cmd = m.leaderboard.Update(msg)
		return m, cmd

	case FrameMsg:
		frame := arena.Frame(msg)
		m.frame = &frame
		if frame.Result != nil {
			m.lastResult = frame.Result
		}
		return m, m.listenForFrames()

	case FeedClosedMsg:
		m.feedClosed = true
		return m, nil
	}

	return m, nil
}

func (m SpectatorModel) View() string {
	if m.state == StateLeaderboard {
		return m.leaderboard.View()
	}

	if m.frame == nil {
		return lipgloss.Place(m.ScreenWidth, m.ScreenHeight, lipgloss.Center, lipgloss.Center, "Waiting for the next match...")
	}

	mapWidth := max(m.ScreenWidth-statusPanelWidth-4, 10)
	mapHeight := max(m.ScreenHeight-2, 5)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		mapViewStyle.Render(RenderMap(*m.frame, mapWidth, mapHeight)),
		statusPanelStyle.Width(statusPanelWidth).Render(m.renderStatusPanel()),
	)
}

// RenderMap draws the board of a frame, cropped to width x height cells.
func RenderMap(frame arena.Frame, width int, height int) string {
	grid := frame.State.Grid
	if grid == nil {
		return ""
	}

	heads := make(map[game.Coordinate]game.Player, len(frame.State.Players))
	for _, p := range frame.State.Players {
		heads[p.Head] = p
	}

	sameMarker := func(c game.Coordinate, marker int) bool {
		return grid.IsInside(c) && grid.CellAt(c) == marker
	}

	var sb strings.Builder
	for y := 0; y < min(grid.Height, height); y++ {
		for x := 0; x < min(grid.Width, width); x++ {
			c := game.Coordinate{X: x, Y: y}
			cell := grid.CellAt(c)

			if p, ok := heads[c]; ok {
				style := lipgloss.NewStyle().Background(lipgloss.Color(voidColor)).Foreground(playerColor(p.Color)).Bold(true)
				sb.WriteString(style.Render(headRune(frame.Moves[p.Name])))
				continue
			}

			switch cell {
			case game.FreeCell:
				sb.WriteString(voidStyle)
			case game.WallMarker:
				sb.WriteString(wallStyle)
			default:
				style := lipgloss.NewStyle().Background(lipgloss.Color(voidColor)).Foreground(playerColor(cell))
				sb.WriteString(style.Render(trailRune(
					sameMarker(c.Add(game.North.Delta()), cell),
					sameMarker(c.Add(game.South.Delta()), cell),
					sameMarker(c.Add(game.West.Delta()), cell),
					sameMarker(c.Add(game.East.Delta()), cell),
				)))
			}
		}
		if y < min(grid.Height, height)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m SpectatorModel) renderStatusPanel() string {
	var status strings.Builder
	frame := m.frame

	status.WriteString(lipgloss.NewStyle().Bold(true).Render("--- Match ---") + "\n")
	status.WriteString(fmt.Sprintf("ID: %s\n", shortID(frame.MatchID)))
	status.WriteString(fmt.Sprintf("Frame: %d\n", frame.State.Frame))
	if frame.State.Grid != nil {
		status.WriteString(fmt.Sprintf("Board: %dx%d\n", frame.State.Grid.Width, frame.State.Grid.Height))
	}

	players := append([]game.Player(nil), frame.State.Players...)
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })

	status.WriteString("\n" + lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("--- Alive (%d) ---", len(players))) + "\n")
	for _, p := range players {
		dot := lipgloss.NewStyle().Foreground(playerColor(p.Color)).Render("● ")
		status.WriteString(fmt.Sprintf("%s%s %s\n", dot, p.Name, headRune(frame.Moves[p.Name])))
	}

	if len(frame.Eliminated) > 0 {
		status.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("✗ "+strings.Join(frame.Eliminated, ", ")) + "\n")
	}

	if m.lastResult != nil {
		status.WriteString("\n" + lipgloss.NewStyle().Bold(true).Render("--- Last Result ---") + "\n")
		winner := m.lastResult.Winner
		if winner == "" {
			winner = "draw"
		}
		status.WriteString(fmt.Sprintf("Winner: %s\n", winner))
		status.WriteString(fmt.Sprintf("Reason: %s\n", m.lastResult.Reason))
		status.WriteString(fmt.Sprintf("Frames: %d\n", m.lastResult.Frames))
	}

	if m.feedClosed {
		status.WriteString("\n" + lipgloss.NewStyle().Faint(true).Render("Feed ended") + "\n")
	}

	status.WriteString("\n" + lipgloss.NewStyle().Bold(true).Render("--- Controls ---") + "\n")
	status.WriteString("Tab: Leaderboard\n")
	status.WriteString("Q / Ctrl+C: Quit\n")

	return status.String()
}

func (m SpectatorModel) listenForFrames() tea.Cmd {
	frames := m.frames
	if frames == nil {
		return nil
	}
	return func() tea.Msg {
		frame, ok := <-frames
		if !ok {
			return FeedClosedMsg{}
		}
		return FrameMsg(frame)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
