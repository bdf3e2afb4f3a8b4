package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGridBoundsAndCells(t *testing.T) {
	grid := NewGrid(4, 3)

	require.True(t, grid.IsInside(Coordinate{X: 0, Y: 0}))
	require.True(t, grid.IsInside(Coordinate{X: 3, Y: 2}))
	require.False(t, grid.IsInside(Coordinate{X: 4, Y: 0}))
	require.False(t, grid.IsInside(Coordinate{X: 0, Y: -1}))

	c := Coordinate{X: 2, Y: 1}
	require.True(t, grid.IsFree(c))
	grid.Set(c, 7)
	require.Equal(t, 7, grid.CellAt(c))
	require.False(t, grid.IsFree(c))
	require.Equal(t, 11, grid.FreeCount())

	clone := grid.Clone()
	clone.Set(c, FreeCell)
	require.Equal(t, 7, grid.CellAt(c), "clone must not share cells")

	require.Equal(t, 1, grid.ClearMarker(7))
	require.Equal(t, 12, grid.FreeCount())
}

func TestGridFromCellsRejectsBadSizes(t *testing.T) {
	_, err := GridFromCells(2, 2, []int{0, 0, 0})
	require.Error(t, err)

	_, err = GridFromCells(0, 2, nil)
	require.Error(t, err)

	grid, err := GridFromCells(2, 1, []int{0, 3})
	require.NoError(t, err)
	require.Equal(t, 3, grid.CellAt(Coordinate{X: 1, Y: 0}))
}

func TestDirections(t *testing.T) {
	tests := []struct {
		dir      Direction
		delta    Coordinate
		opposite Direction
		name     string
	}{
		{North, Coordinate{X: 0, Y: -1}, South, "north"},
		{East, Coordinate{X: 1, Y: 0}, West, "east"},
		{South, Coordinate{X: 0, Y: 1}, North, "south"},
		{West, Coordinate{X: -1, Y: 0}, East, "west"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.delta, tt.dir.Delta())
			require.Equal(t, tt.opposite, tt.dir.Opposite())
			require.Equal(t, tt.name, tt.dir.String())

			parsed, err := ParseDirection(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.dir, parsed)
		})
	}

	require.False(t, NoDirection.IsValid())
	require.Equal(t, "none", NoDirection.String())
	_, err := ParseDirection("sideways")
	require.Error(t, err)
}

func TestManhattanDistance(t *testing.T) {
	require.Equal(t, 0, GetManhattanDistance(Coordinate{X: 3, Y: 3}, Coordinate{X: 3, Y: 3}))
	require.Equal(t, 7, GetManhattanDistance(Coordinate{X: -1, Y: 2}, Coordinate{X: 3, Y: -1}))
}

func TestParseAndRenderBoard(t *testing.T) {
	rows := []string{
		"..#..",
		".aA..",
		"....B",
	}

	state, err := ParseBoard(4, rows...)
	require.NoError(t, err)
	require.Equal(t, 4, state.Frame)
	require.Len(t, state.Players, 2)
	require.Equal(t, Player{Name: "A", Head: Coordinate{X: 2, Y: 1}, Color: 1}, state.Players[0])
	require.Equal(t, Player{Name: "B", Head: Coordinate{X: 4, Y: 2}, Color: 2}, state.Players[1])
	require.Equal(t, WallMarker, state.Grid.CellAt(Coordinate{X: 2, Y: 0}))
	require.Equal(t, 1, state.Grid.CellAt(Coordinate{X: 1, Y: 1}))

	want := "Frame=4 Size=5x3 Players=2\n..#..\n.aA..\n....B\n"
	require.Equal(t, want, RenderBoard(state))

	self, ok := state.FindPlayer("B")
	require.True(t, ok)
	require.Equal(t, Coordinate{X: 4, Y: 2}, self.Head)
	_, ok = state.FindPlayer("Z")
	require.False(t, ok)
}

func TestParseBoardErrors(t *testing.T) {
	_, err := ParseBoard(0)
	require.Error(t, err)

	_, err = ParseBoard(0, "...", "..")
	require.Error(t, err)

	_, err = ParseBoard(0, "A.A")
	require.Error(t, err)

	_, err = ParseBoard(0, "..?")
	require.Error(t, err)
}
