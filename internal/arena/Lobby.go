package arena

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Mshel/cycles/internal/transport"
	"github.com/charmbracelet/log"
)

var (
	ErrNameTaken   = errors.New("name is already taken")
	ErrLobbyClosed = errors.New("lobby is closed")
)

// Lobby gathers agents for the next match. Resident agents (house and lua
// bots) play every match; remote agents queue and play one match each.
type Lobby struct {
	mu         sync.Mutex
	minPlayers int
	maxPlayers int
	residents  []Agent
	waiting    []*RemoteAgent
	// reserved holds names admitted but not yet registered.
	reserved map[string]bool
	closed   bool
	changed  chan struct{}
	logger   *log.Logger
}

func NewLobby(minPlayers int, maxPlayers int, logger *log.Logger) *Lobby {
	if logger == nil {
		logger = log.Default()
	}
	return &Lobby{
		minPlayers: minPlayers,
		maxPlayers: maxPlayers,
		reserved:   map[string]bool{},
		changed:    make(chan struct{}, 1),
		logger:     logger,
	}
}

func (l *Lobby) AddResident(agent Agent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.nameInUse(agent.Name()) {
		return fmt.Errorf("%w: %s", ErrNameTaken, agent.Name())
	}
	if len(l.residents) >= l.maxPlayers {
		return fmt.Errorf("lobby already has %d resident bots", len(l.residents))
	}
	l.residents = append(l.residents, agent)
	l.notify()
	return nil
}

// Admit reserves name for a connecting bot.
func (l *Lobby) Admit(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLobbyClosed
	}
	l.pruneDisconnected()
	if l.nameInUse(name) {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	l.reserved[name] = true
	return nil
}

// Register queues an admitted bot for the next match.
func (l *Lobby) Register(peer *transport.Peer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.reserved, peer.Name())
	if l.closed {
		return ErrLobbyClosed
	}

	agent := NewRemoteAgent(peer, l.logger)
	if !agent.Connected() {
		return transport.ErrPeerClosed
	}
	l.waiting = append(l.waiting, agent)
	l.logger.Info("Bot waiting for a match", "bot", peer.Name(), "waiting", len(l.waiting))
	l.notify()
	return nil
}

// Waiting lists the remote bots queued for the next match.
func (l *Lobby) Waiting() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneDisconnected()
	names := make([]string, 0, len(l.waiting))
	for _, agent := range l.waiting {
		names = append(names, agent.Name())
	}
	return names
}

// NextMatch blocks until at least minPlayers agents are present and returns
// up to maxPlayers of them. Residents always play; remote bots are taken in
// arrival order.
func (l *Lobby) NextMatch(ctx context.Context) ([]Agent, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, ErrLobbyClosed
		}

		l.pruneDisconnected()
		if len(l.residents)+len(l.waiting) >= l.minPlayers {
			agents := make([]Agent, 0, l.maxPlayers)
			agents = append(agents, l.residents...)

			take := min(l.maxPlayers-len(agents), len(l.waiting))
			for _, remote := range l.waiting[:take] {
				agents = append(agents, remote)
			}
			l.waiting = append([]*RemoteAgent(nil), l.waiting[take:]...)
			l.mu.Unlock()
			return agents, nil
		}
		l.mu.Unlock()

		select {
		case <-l.changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close disconnects every queued bot and rejects new ones.
func (l *Lobby) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	for _, agent := range l.waiting {
		agent.Close("arena is shutting down")
	}
	l.waiting = nil
	for _, agent := range l.residents {
		if closer, ok := agent.(interface{ Close() }); ok {
			closer.Close()
		}
	}
	l.notify()
}

func (l *Lobby) nameInUse(name string) bool {
	if l.reserved[name] {
		return true
	}
	for _, agent := range l.residents {
		if agent.Name() == name {
			return true
		}
	}
	for _, agent := range l.waiting {
		if agent.Name() == name {
			return true
		}
	}
	return false
}

func (l *Lobby) pruneDisconnected() {
	connected := l.waiting[:0]
	for _, agent := range l.waiting {
		if agent.Connected() {
			connected = append(connected, agent)
			continue
		}
		l.logger.Info("Bot left the lobby", "bot", agent.Name())
	}
	l.waiting = connected
}

func (l *Lobby) notify() {
	select {
	case l.changed <- struct{}{}:
	default:
	}
}
