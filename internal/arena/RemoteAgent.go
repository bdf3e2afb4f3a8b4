package arena

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mshel/cycles/internal/game"
	"github.com/Mshel/cycles/internal/protocol"
	"github.com/Mshel/cycles/internal/transport"
	"github.com/charmbracelet/log"
)

var ErrDisconnected = errors.New("remote bot disconnected")

// RemoteAgent is a bot playing over a websocket. It is good for one match;
// the connection is closed when the match ends.
type RemoteAgent struct {
	peer    *transport.Peer
	matchID string
	logger  *log.Logger
}

func NewRemoteAgent(peer *transport.Peer, logger *log.Logger) *RemoteAgent {
	if logger == nil {
		logger = log.Default()
	}
	return &RemoteAgent{peer: peer, logger: logger.With("bot", peer.Name())}
}

func (r *RemoteAgent) Name() string { return r.peer.Name() }

func (r *RemoteAgent) Connected() bool {
	select {
	case <-r.peer.Done():
		return false
	default:
		return true
	}
}

// Decide sends the snapshot and waits for the bot's move for this frame.
// Moves for earlier frames are discarded.
func (r *RemoteAgent) Decide(ctx context.Context, state game.GameState) (game.Direction, error) {
	if err := r.peer.Send(protocol.MsgTypeSnapshot, protocol.NewSnapshot(r.matchID, state)); err != nil {
		return game.NoDirection, fmt.Errorf("send snapshot: %w", err)
	}

	for {
		select {
		case move := <-r.peer.Moves():
			if move.Frame != state.Frame {
				r.logger.Debug("Discarding move for another frame", "frame", move.Frame, "want", state.Frame)
				continue
			}
			return move.ParseDirection()

		case <-r.peer.Done():
			return game.NoDirection, ErrDisconnected

		case <-ctx.Done():
			return game.NoDirection, ctx.Err()
		}
	}
}

func (r *RemoteAgent) MatchStarted(matchID string) {
	r.matchID = matchID
}

func (r *RemoteAgent) MatchEnded(result Result) {
	err := r.peer.Send(protocol.MsgTypeEnd, protocol.End{
		MatchID: result.MatchID,
		Winner:  result.Winner,
		Reason:  result.Reason,
	})
	if err != nil {
		r.logger.Warn("Could not send match result", "error", err)
	}
	r.peer.Close()
}

// Close disconnects the bot without a result, e.g. on shutdown.
func (r *RemoteAgent) Close(reason string) {
	_ = r.peer.Send(protocol.MsgTypeError, protocol.Error{Message: reason})
	r.peer.Close()
}
