package transport

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Mshel/cycles/internal/protocol"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	joinTimeout    = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 16
	moveBufferSize = 8
)

var (
	ErrPeerClosed = errors.New("peer is closed")
	ErrSlowPeer   = errors.New("peer send buffer is full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Bots are not browsers; any origin may connect.
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Lobby decides who may play. Admit runs before the welcome is sent and
// Register after, so the peer never sees a snapshot ahead of its welcome.
// Every admitted name is followed by exactly one Register call.
type Lobby interface {
	Admit(name string) error
	Register(peer *Peer) error
}

// Server upgrades bot connections and hands them to the lobby.
type Server struct {
	lobby  Lobby
	logger *log.Logger
}

func NewServer(lobby Lobby, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{lobby: lobby, logger: logger}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	join, err := readJoin(conn)
	if err != nil {
		s.logger.Warn("Bad join", "remote", r.RemoteAddr, "error", err)
		rejectConn(conn, err.Error())
		return
	}

	if err := s.lobby.Admit(join.Name); err != nil {
		s.logger.Info("Join rejected", "name", join.Name, "remote", r.RemoteAddr, "error", err)
		rejectConn(conn, err.Error())
		return
	}

	peer := newPeer(conn, join.Name, s.logger)
	go peer.writePump()

	// Register is called even when the welcome fails so the lobby releases
	// the admitted name.
	if err := peer.Send(protocol.MsgTypeWelcome, protocol.Welcome{Name: join.Name}); err != nil {
		peer.Close()
	}

	if err := s.lobby.Register(peer); err != nil {
		s.logger.Info("Register failed", "name", join.Name, "error", err)
		_ = peer.Send(protocol.MsgTypeError, protocol.Error{Message: err.Error()})
		peer.Close()
		return
	}

	s.logger.Info("Bot connected", "name", join.Name, "remote", r.RemoteAddr)
	go peer.readPump()
}

func readJoin(conn *websocket.Conn) (protocol.Join, error) {
	conn.SetReadDeadline(time.Now().Add(joinTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.Join{}, fmt.Errorf("read join: %w", err)
	}

	env, err := protocol.Decode(data)
	if err != nil {
		return protocol.Join{}, err
	}
	if env.Type != protocol.MsgTypeJoin {
		return protocol.Join{}, fmt.Errorf("expected join, got %s", env.Type)
	}

	var join protocol.Join
	if err := env.DecodePayload(&join); err != nil {
		return protocol.Join{}, err
	}
	if join.Name == "" {
		return protocol.Join{}, errors.New("bot name is required")
	}
	return join, nil
}

func rejectConn(conn *websocket.Conn, message string) {
	defer conn.Close()

	data, err := protocol.Encode(protocol.MsgTypeError, protocol.Error{Message: message})
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}

// Peer is the arena's handle on one connected bot.
type Peer struct {
	name   string
	conn   *websocket.Conn
	send   chan []byte
	moves  chan protocol.Move
	done   chan struct{}
	logger *log.Logger

	closeOnce sync.Once
}

func newPeer(conn *websocket.Conn, name string, logger *log.Logger) *Peer {
	return &Peer{
		name:   name,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		moves:  make(chan protocol.Move, moveBufferSize),
		done:   make(chan struct{}),
		logger: logger.With("peer", name),
	}
}

func (p *Peer) Name() string { return p.name }

// Moves delivers the moves the bot sends, in arrival order.
func (p *Peer) Moves() <-chan protocol.Move { return p.moves }

// Done is closed once the peer disconnects or is closed.
func (p *Peer) Done() <-chan struct{} { return p.done }

// Send queues a frame without blocking.
func (p *Peer) Send(msgType string, payload any) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}

	select {
	case <-p.done:
		return ErrPeerClosed
	default:
	}

	select {
	case p.send <- data:
		return nil
	case <-p.done:
		return ErrPeerClosed
	default:
		return ErrSlowPeer
	}
}

// Close disconnects the peer after flushing frames already queued.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// readPump handles incoming messages from the bot
func (p *Peer) readPump() {
	defer p.Close()

	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Warn("Websocket error", "error", err)
			}
			return
		}
		p.conn.SetReadDeadline(time.Now().Add(pongWait))

		env, err := protocol.Decode(data)
		if err != nil {
			p.logger.Warn("Dropping bad frame", "error", err)
			continue
		}
		if env.Type != protocol.MsgTypeMove {
			p.logger.Debug("Ignoring message", "type", env.Type)
			continue
		}

		var move protocol.Move
		if err := env.DecodePayload(&move); err != nil {
			p.logger.Warn("Dropping bad move", "error", err)
			continue
		}

		select {
		case p.moves <- move:
		default:
			p.logger.Warn("Move buffer full, dropping move", "frame", move.Frame)
		}
	}
}

// writePump sends queued frames to the bot
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case data := <-p.send:
			if err := p.writeFrame(data); err != nil {
				p.Close()
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.Close()
				return
			}

		case <-p.done:
			p.flush()
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (p *Peer) flush() {
	for {
		select {
		case data := <-p.send:
			if err := p.writeFrame(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (p *Peer) writeFrame(data []byte) error {
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.BinaryMessage, data)
}
