package game

import "fmt"

// Coordinate identifies a grid cell. X grows east, Y grows south.
type Coordinate struct {
	X int
	Y int
}

func (c Coordinate) Add(other Coordinate) Coordinate {
	return Coordinate{X: c.X + other.X, Y: c.Y + other.Y}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Less orders coordinates by X first, then Y.
func (c Coordinate) Less(other Coordinate) bool {
	if c.X != other.X {
		return c.X < other.X
	}
	return c.Y < other.Y
}

func GetManhattanDistance(c1, c2 Coordinate) int {
	return abs(c1.X-c2.X) + abs(c1.Y-c2.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
