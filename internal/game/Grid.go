package game

import "fmt"

// FreeCell is the marker for an unoccupied cell. Any other value is a trail,
// a wall or another head.
const FreeCell = 0

// Grid is a row-major board of cell markers.
type Grid struct {
	Width  int
	Height int
	Cells  []int
}

func NewGrid(width int, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Cells:  make([]int, width*height),
	}
}

// GridFromCells wraps an existing row-major cell slice.
func GridFromCells(width int, height int, cells []int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", width, height)
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("grid %dx%d needs %d cells, got %d", width, height, width*height, len(cells))
	}
	return &Grid{Width: width, Height: height, Cells: cells}, nil
}

func (g *Grid) IsInside(c Coordinate) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

// CellAt returns the marker at c. Callers check IsInside first.
func (g *Grid) CellAt(c Coordinate) int {
	return g.Cells[c.Y*g.Width+c.X]
}

func (g *Grid) IsFree(c Coordinate) bool {
	return g.IsInside(c) && g.CellAt(c) == FreeCell
}

func (g *Grid) Set(c Coordinate, marker int) {
	g.Cells[c.Y*g.Width+c.X] = marker
}

// ClearMarker frees every cell carrying marker and returns how many were freed.
func (g *Grid) ClearMarker(marker int) int {
	cleared := 0
	for i, cell := range g.Cells {
		if cell == marker {
			g.Cells[i] = FreeCell
			cleared++
		}
	}
	return cleared
}

func (g *Grid) FreeCount() int {
	free := 0
	for _, cell := range g.Cells {
		if cell == FreeCell {
			free++
		}
	}
	return free
}

func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	cells := make([]int, len(g.Cells))
	copy(cells, g.Cells)
	return &Grid{Width: g.Width, Height: g.Height, Cells: cells}
}
