package ui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Mshel/cycles/internal/arena"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const leaderboardQueryTimeout = 2 * time.Second

// LeaderboardSource is where standings come from; *arena.ResultStore is one.
type LeaderboardSource interface {
	TopPlayers(ctx context.Context, limit, offset int) ([]arena.Standing, error)
	TotalMatches(ctx context.Context) (int, error)
}

// LeaderboardMsg delivers a fresh page of standings.
type LeaderboardMsg struct {
	Standings []arena.Standing
	Matches   int
	Err       error
}

var leaderboardColumns = []table.Column{
	{Title: "#", Width: 4},
	{Title: "Player", Width: 18},
	{Title: "Wins", Width: 6},
	{Title: "Played", Width: 8},
	{Title: "Avg place", Width: 10},
}

type LeaderboardModel struct {
	source  LeaderboardSource
	table   table.Model
	limit   int
	maxRows int
	matches int
	err     error
	loaded  bool

	ScreenWidth  int
	ScreenHeight int
}

func NewLeaderboardModel(source LeaderboardSource, screenWidth int, screenHeight int) LeaderboardModel {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("8")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("4")).
		Bold(false)

	t := table.New(
		table.WithColumns(leaderboardColumns),
		table.WithFocused(true),
		table.WithStyles(styles),
	)

	m := LeaderboardModel{source: source, table: t, limit: 10}
	return m.Resize(screenWidth, screenHeight)
}

// Resize fits the table to the screen; rows beyond the visible height are not
// fetched.
func (m LeaderboardModel) Resize(screenWidth int, screenHeight int) LeaderboardModel {
	m.ScreenWidth, m.ScreenHeight = screenWidth, screenHeight
	m.limit = max(screenHeight-12, 5)
	if m.maxRows > 0 {
		m.limit = min(m.limit, m.maxRows)
	}
	// header plus its bottom border
	m.table.SetHeight(m.limit + 2)
	return m
}

// WithMaxRows caps how many players are fetched, whatever the screen height.
func (m LeaderboardModel) WithMaxRows(n int) LeaderboardModel {
	m.maxRows = n
	return m.Resize(m.ScreenWidth, m.ScreenHeight)
}

// Refresh loads the top of the leaderboard.
func (m LeaderboardModel) Refresh(ctx context.Context) tea.Cmd {
	source, limit := m.source, m.limit
	if source == nil {
		return func() tea.Msg {
			return LeaderboardMsg{Err: fmt.Errorf("no result store configured")}
		}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, leaderboardQueryTimeout)
		defer cancel()

		standings, err := source.TopPlayers(ctx, limit, 0)
		if err != nil {
			return LeaderboardMsg{Err: err}
		}
		matches, err := source.TotalMatches(ctx)
		if err != nil {
			return LeaderboardMsg{Err: err}
		}
		return LeaderboardMsg{Standings: standings, Matches: matches}
	}
}

func (m LeaderboardModel) Update(msg tea.Msg) (LeaderboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case LeaderboardMsg:
		m.loaded = true
		m.err = msg.Err
		if msg.Err == nil {
			m.matches = msg.Matches
			m.table.SetRows(standingRows(msg.Standings))
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "r" {
			return m, m.Refresh(context.Background())
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m LeaderboardModel) View() string {
	var body string
	switch {
	case m.err != nil:
		body = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Could not load leaderboard: " + m.err.Error())
	case !m.loaded:
		body = "Loading..."
	case len(m.table.Rows()) == 0:
		body = "No matches played yet."
	default:
		body = m.table.View()
	}

	title := lipgloss.NewStyle().Bold(true).Padding(1, 0).Render("👑 LEADERBOARD 👑")
	summary := lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf("%d matches played", m.matches))
	instruction := lipgloss.NewStyle().Faint(true).Margin(1, 0).Render("Tab/Esc: back   R: refresh   Q: quit")

	content := lipgloss.JoinVertical(lipgloss.Center, title, body, summary, instruction)

	return lipgloss.Place(m.ScreenWidth, m.ScreenHeight,
		lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Border(lipgloss.ThickBorder()).Padding(0, 2).Render(content),
	)
}

func standingRows(standings []arena.Standing) []table.Row {
	rows := make([]table.Row, 0, len(standings))
	for i, s := range standings {
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			s.Name,
			strconv.Itoa(s.Wins),
			strconv.Itoa(s.Matches),
			fmt.Sprintf("%.2f", s.AveragePlace),
		})
	}
	return rows
}
