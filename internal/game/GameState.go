package game

// GameState is the snapshot for one decision cycle. It is replaced wholesale
// every frame and never patched.
type GameState struct {
	Frame   int
	Players []Player
	Grid    *Grid
}

// FindPlayer scans the roster by name. Rosters are small so a linear scan is
// fine; cost is O(len(Players)).
func (s GameState) FindPlayer(name string) (Player, bool) {
	for _, player := range s.Players {
		if player.Name == name {
			return player, true
		}
	}
	return Player{}, false
}

// Clone deep copies the snapshot so it can be handed to concurrent readers.
func (s GameState) Clone() GameState {
	out := GameState{Frame: s.Frame, Grid: s.Grid.Clone()}
	if len(s.Players) > 0 {
		out.Players = make([]Player, len(s.Players))
		copy(out.Players, s.Players)
	}
	return out
}
