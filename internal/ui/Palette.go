package ui

import (
	"strconv"

	"github.com/Mshel/cycles/internal/game"
	"github.com/charmbracelet/lipgloss"
)

var (
	voidColor = "233"

	wallStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(strconv.Itoa(game.WallMarker))).Render("▒")
	voidStyle = lipgloss.NewStyle().Background(lipgloss.Color(voidColor)).Render(" ")

	headRunes = map[game.Direction]string{
		game.North: "▲",
		game.South: "▼",
		game.West:  "◀",
		game.East:  "▶",
	}

	// 256-color codes that read well on a dark background.
	playerPalette = []string{"9", "10", "11", "12", "13", "14", "208", "201", "118", "45", "220", "99"}
)

// playerColor maps a trail marker to a terminal color.
func playerColor(marker int) lipgloss.Color {
	if marker <= 0 {
		return lipgloss.Color(voidColor)
	}
	return lipgloss.Color(playerPalette[(marker-1)%len(playerPalette)])
}

func headRune(direction game.Direction) string {
	if r, ok := headRunes[direction]; ok {
		return r
	}
	return "●"
}

// trailRune joins a trail cell to its neighbours of the same marker.
func trailRune(up, down, left, right bool) string {
	switch {
	case (up && down) || (up && !left && !right && !down) || (down && !left && !right && !up):
		return "│"
	case (left && right) || (left && !up && !down && !right) || (right && !up && !down && !left):
		return "─"
	case up && right:
		return "└"
	case up && left:
		return "┘"
	case down && right:
		return "┌"
	case down && left:
		return "┐"
	default:
		return "•"
	}
}
