package game

import (
	"fmt"
	"sort"
	"strings"
)

// WallMarker is the cell value ParseBoard uses for '#'.
const WallMarker = 172

// ParseBoard builds a snapshot from an ASCII picture, one string per row:
//
//	.  free cell
//	#  wall
//	A  head of player "A" (color 1), B is color 2 and so on
//	a  trail of player "A"
//
// The roster is sorted by name.
func ParseBoard(frame int, rows ...string) (GameState, error) {
	if len(rows) == 0 {
		return GameState{}, fmt.Errorf("board has no rows")
	}

	width := len(rows[0])
	grid := NewGrid(width, len(rows))
	heads := map[string]Coordinate{}

	for y, row := range rows {
		if len(row) != width {
			return GameState{}, fmt.Errorf("row %d has width %d, expected %d", y, len(row), width)
		}
		for x, ch := range row {
			c := Coordinate{X: x, Y: y}
			switch {
			case ch == '.':
			case ch == '#':
				grid.Set(c, WallMarker)
			case ch >= 'A' && ch <= 'Z':
				name := string(ch)
				if _, dup := heads[name]; dup {
					return GameState{}, fmt.Errorf("player %s has two heads", name)
				}
				heads[name] = c
				grid.Set(c, int(ch-'A')+1)
			case ch >= 'a' && ch <= 'z':
				grid.Set(c, int(ch-'a')+1)
			default:
				return GameState{}, fmt.Errorf("unknown board symbol %q at %s", ch, c)
			}
		}
	}

	names := make([]string, 0, len(heads))
	for name := range heads {
		names = append(names, name)
	}
	sort.Strings(names)

	state := GameState{Frame: frame, Grid: grid}
	for _, name := range names {
		state.Players = append(state.Players, Player{
			Name:  name,
			Head:  heads[name],
			Color: int(name[0]-'A') + 1,
		})
	}
	return state, nil
}

// RenderBoard is the inverse of ParseBoard for small boards; it is used in test
// failure output and debug logs. Heads of players not named by a single capital
// letter are drawn as 'H'.
func RenderBoard(state GameState) string {
	if state.Grid == nil {
		return "<nil grid>"
	}

	heads := make(map[Coordinate]byte, len(state.Players))
	for _, p := range state.Players {
		symbol := byte('H')
		if len(p.Name) == 1 && p.Name[0] >= 'A' && p.Name[0] <= 'Z' {
			symbol = p.Name[0]
		}
		heads[p.Head] = symbol
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Frame=%d Size=%dx%d Players=%d\n", state.Frame, state.Grid.Width, state.Grid.Height, len(state.Players))
	for y := 0; y < state.Grid.Height; y++ {
		for x := 0; x < state.Grid.Width; x++ {
			c := Coordinate{X: x, Y: y}
			if symbol, ok := heads[c]; ok {
				b.WriteByte(symbol)
				continue
			}
			cell := state.Grid.CellAt(c)
			switch {
			case cell == FreeCell:
				b.WriteByte('.')
			case cell >= 1 && cell <= 26:
				b.WriteByte(byte('a' + cell - 1))
			default:
				b.WriteByte('#')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
