// Package transport moves protocol frames over websockets: Client is the bot
// side connection, Server and Peer are the arena side.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mshel/cycles/internal/game"
	"github.com/Mshel/cycles/internal/protocol"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected = errors.New("connection is not active")
	// ErrMatchOver is returned by ReceiveSnapshot once the arena ends the match.
	// It matches ErrNotConnected under errors.Is.
	ErrMatchOver = fmt.Errorf("match is over: %w", ErrNotConnected)
	ErrRejected  = errors.New("join rejected")
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
)

// Client is a bot's connection to the arena.
type Client struct {
	conn   *websocket.Conn
	name   string
	logger *log.Logger

	writeLock sync.Mutex
	active    atomic.Bool
	result    atomic.Pointer[protocol.End]
}

// Connect dials url, joins under name and waits for the arena's welcome.
func Connect(ctx context.Context, url string, name string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:   conn,
		name:   name,
		logger: logger.With("bot", name),
	}

	if err := c.write(protocol.MsgTypeJoin, protocol.Join{Name: name}); err != nil {
		conn.Close()
		return nil, err
	}

	env, err := c.readEnvelope(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("await welcome: %w", err)
	}

	switch env.Type {
	case protocol.MsgTypeWelcome:
		var welcome protocol.Welcome
		if err := env.DecodePayload(&welcome); err != nil {
			conn.Close()
			return nil, err
		}
		c.active.Store(true)
		c.logger.Info("Joined arena", "url", url, "as", welcome.Name)
		return c, nil
	case protocol.MsgTypeError:
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrRejected, decodeError(env))
	default:
		conn.Close()
		return nil, fmt.Errorf("expected welcome, got %s", env.Type)
	}
}

func (c *Client) IsActive() bool {
	return c.active.Load()
}

func (c *Client) Name() string {
	return c.name
}

// Result returns the end-of-match message, or nil while the match runs.
func (c *Client) Result() *protocol.End {
	return c.result.Load()
}

// ReceiveSnapshot blocks until the next frame arrives.
func (c *Client) ReceiveSnapshot(ctx context.Context) (game.GameState, error) {
	for {
		if !c.IsActive() {
			return game.GameState{}, ErrNotConnected
		}

		env, err := c.readEnvelope(ctx)
		if errors.Is(err, protocol.ErrUnknownMessage) {
			c.logger.Debug("Ignoring message", "error", err)
			continue
		}
		if err != nil {
			c.active.Store(false)
			return game.GameState{}, fmt.Errorf("%w: %w", ErrNotConnected, err)
		}

		switch env.Type {
		case protocol.MsgTypeSnapshot:
			var snapshot protocol.Snapshot
			if err := env.DecodePayload(&snapshot); err != nil {
				return game.GameState{}, err
			}
			return snapshot.GameState()

		case protocol.MsgTypeEnd:
			var end protocol.End
			if err := env.DecodePayload(&end); err != nil {
				return game.GameState{}, err
			}
			c.result.Store(&end)
			c.active.Store(false)
			c.logger.Info("Match ended", "match", end.MatchID, "winner", end.Winner, "reason", end.Reason)
			return game.GameState{}, ErrMatchOver

		case protocol.MsgTypeError:
			c.logger.Warn("Arena reported an error", "message", decodeError(env))

		default:
			c.logger.Debug("Ignoring message", "type", env.Type)
		}
	}
}

func (c *Client) SendMove(frame int, direction game.Direction) error {
	if !c.IsActive() {
		return ErrNotConnected
	}
	return c.write(protocol.MsgTypeMove, protocol.NewMove(frame, direction))
}

func (c *Client) Close() error {
	c.active.Store(false)

	c.writeLock.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeLock.Unlock()

	return c.conn.Close()
}

func (c *Client) write(msgType string, payload any) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", msgType, err)
	}
	return nil
}

// readEnvelope reads one frame, giving up when ctx is done.
func (c *Client) readEnvelope(ctx context.Context) (protocol.Envelope, error) {
	deadline, _ := ctx.Deadline()
	c.conn.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return protocol.Envelope{}, ctxErr
		}
		return protocol.Envelope{}, err
	}
	return protocol.Decode(data)
}

func decodeError(env protocol.Envelope) string {
	var msg protocol.Error
	if err := env.DecodePayload(&msg); err != nil {
		return err.Error()
	}
	return msg.Message
}
