package game

// Player is one roster entry of a snapshot. Color doubles as the marker the
// player's trail leaves on the grid.
type Player struct {
	Name  string
	Head  Coordinate
	Color int
}
