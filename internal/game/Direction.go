package game

import (
	"fmt"
	"strings"
)

type Direction int

const (
	North Direction = iota
	East
	South
	West

	// NoDirection marks a session that has not moved yet.
	NoDirection Direction = -1
)

// Directions lists the four moves in north, east, south, west order.
var Directions = [4]Direction{North, East, South, West}

var directionDeltas = map[Direction]Coordinate{
	North: {X: 0, Y: -1},
	East:  {X: 1, Y: 0},
	South: {X: 0, Y: 1},
	West:  {X: -1, Y: 0},
}

var directionNames = map[Direction]string{
	North: "north",
	East:  "east",
	South: "south",
	West:  "west",
}

// Delta returns the unit offset of the direction. NoDirection has a zero delta.
func (d Direction) Delta() Coordinate {
	return directionDeltas[d]
}

func (d Direction) IsValid() bool {
	_, ok := directionDeltas[d]
	return ok
}

func (d Direction) Opposite() Direction {
	if !d.IsValid() {
		return NoDirection
	}
	return (d + 2) % 4
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return "none"
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "up", "n":
		return North, nil
	case "east", "right", "e":
		return East, nil
	case "south", "down", "s":
		return South, nil
	case "west", "left", "w":
		return West, nil
	}
	return NoDirection, fmt.Errorf("unknown direction %q", s)
}
