// Package protocol defines the frames exchanged between the arena and remote
// bots. Every websocket message is one msgpack encoded Envelope.
package protocol

import (
	"errors"
	"fmt"

	"github.com/Mshel/cycles/internal/game"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	MsgTypeJoin     = "join"
	MsgTypeWelcome  = "welcome"
	MsgTypeSnapshot = "snapshot"
	MsgTypeMove     = "move"
	MsgTypeEnd      = "end"
	MsgTypeError    = "error"
)

var ErrUnknownMessage = errors.New("unknown message type")

type Envelope struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// Join is the first message a bot sends.
type Join struct {
	Name string `msgpack:"name"`
}

// Welcome acknowledges a join. The bot then waits in the lobby until a match
// starts and snapshots arrive.
type Welcome struct {
	Name string `msgpack:"name"`
}

type PlayerInfo struct {
	Name  string `msgpack:"name"`
	X     int    `msgpack:"x"`
	Y     int    `msgpack:"y"`
	Color int    `msgpack:"color"`
}

// Snapshot carries the full board for one frame. Cells are row-major.
type Snapshot struct {
	MatchID string       `msgpack:"match_id"`
	Frame   int          `msgpack:"frame"`
	Width   int          `msgpack:"width"`
	Height  int          `msgpack:"height"`
	Cells   []int        `msgpack:"cells"`
	Players []PlayerInfo `msgpack:"players"`
}

type Move struct {
	Frame     int    `msgpack:"frame"`
	Direction string `msgpack:"direction"`
}

type End struct {
	MatchID string `msgpack:"match_id"`
	Winner  string `msgpack:"winner"`
	Reason  string `msgpack:"reason"`
}

type Error struct {
	Message string `msgpack:"message"`
}

// Encode wraps payload in an envelope of the given type.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}

	data, err := msgpack.Marshal(&Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode reads the envelope only; the payload is decoded with DecodePayload
// once the type is known.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case MsgTypeJoin, MsgTypeWelcome, MsgTypeSnapshot, MsgTypeMove, MsgTypeEnd, MsgTypeError:
		return env, nil
	}
	return env, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
}

func (e Envelope) DecodePayload(v any) error {
	if err := msgpack.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// NewSnapshot converts a game state into its wire form.
func NewSnapshot(matchID string, state game.GameState) Snapshot {
	snapshot := Snapshot{MatchID: matchID, Frame: state.Frame}
	if state.Grid != nil {
		snapshot.Width = state.Grid.Width
		snapshot.Height = state.Grid.Height
		snapshot.Cells = state.Grid.Cells
	}

	snapshot.Players = make([]PlayerInfo, 0, len(state.Players))
	for _, p := range state.Players {
		snapshot.Players = append(snapshot.Players, PlayerInfo{Name: p.Name, X: p.Head.X, Y: p.Head.Y, Color: p.Color})
	}
	return snapshot
}

// GameState rebuilds the snapshot as a game state, rejecting inconsistent boards.
func (s Snapshot) GameState() (game.GameState, error) {
	grid, err := game.GridFromCells(s.Width, s.Height, s.Cells)
	if err != nil {
		return game.GameState{}, fmt.Errorf("snapshot frame %d: %w", s.Frame, err)
	}

	state := game.GameState{Frame: s.Frame, Grid: grid}
	for _, p := range s.Players {
		head := game.Coordinate{X: p.X, Y: p.Y}
		if !grid.IsInside(head) {
			return game.GameState{}, fmt.Errorf("snapshot frame %d: player %s head %s outside grid", s.Frame, p.Name, head)
		}
		state.Players = append(state.Players, game.Player{Name: p.Name, Head: head, Color: p.Color})
	}
	return state, nil
}

func NewMove(frame int, direction game.Direction) Move {
	return Move{Frame: frame, Direction: direction.String()}
}

func (m Move) ParseDirection() (game.Direction, error) {
	return game.ParseDirection(m.Direction)
}
