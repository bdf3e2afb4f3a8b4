package arena

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Mshel/cycles/internal/game"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	ReasonLastStanding = "last player standing"
	ReasonNoSurvivors  = "no survivors"
	ReasonFrameLimit   = "frame limit"
	ReasonCancelled    = "cancelled"
)

type Placement struct {
	Name  string
	Place int
	// Frames is how many frames the player lasted.
	Frames   int
	Survived bool
}

type Result struct {
	MatchID string
	// Winner is empty on a draw.
	Winner     string
	Reason     string
	Frames     int
	Placements []Placement
	StartedAt  time.Time
	EndedAt    time.Time
}

// Frame is published once per simulated frame: the board the agents saw, the
// moves they ended up making and who was eliminated by those moves. The last
// frame of a match carries the final board and the result.
type Frame struct {
	MatchID    string
	State      game.GameState
	Moves      map[string]game.Direction
	Eliminated []string
	Result     *Result
}

type FrameListener interface {
	OnFrame(frame Frame)
}

type seat struct {
	agent        Agent
	player       game.Player
	direction    game.Direction
	alive        bool
	eliminatedAt int
	inFlight     atomic.Bool
}

type decision struct {
	seat      int
	direction game.Direction
	err       error
}

// Match simulates one game on its own grid. Moves are simultaneous: every
// alive agent decides against the same snapshot, then all heads advance.
type Match struct {
	id        string
	config    MatchConfig
	grid      *game.Grid
	seats     []*seat
	listeners []FrameListener
	logger    *log.Logger

	// pending tracks decide calls that outlived their frame.
	pending sync.WaitGroup
}

func NewMatch(config MatchConfig, agents []Agent, rng *rand.Rand, logger *log.Logger) (*Match, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(agents) < 2 {
		return nil, fmt.Errorf("a match needs at least 2 agents, got %d", len(agents))
	}
	if len(agents) > config.MaxPlayers {
		return nil, fmt.Errorf("%d agents exceed max players %d", len(agents), config.MaxPlayers)
	}
	if logger == nil {
		logger = log.Default()
	}

	id := uuid.NewString()
	m := &Match{
		id:     id,
		config: config,
		grid:   game.NewGrid(config.Width, config.Height),
		logger: logger.With("match", id),
	}

	names := map[string]bool{}
	spawns := rng.Perm(config.Width * config.Height)
	for i, agent := range agents {
		if names[agent.Name()] {
			return nil, fmt.Errorf("duplicate agent name %q", agent.Name())
		}
		names[agent.Name()] = true

		cell := spawns[i]
		head := game.Coordinate{X: cell % config.Width, Y: cell / config.Width}
		color := i + 1
		m.grid.Set(head, color)

		m.seats = append(m.seats, &seat{
			agent:     agent,
			player:    game.Player{Name: agent.Name(), Head: head, Color: color},
			direction: game.Directions[rng.Intn(len(game.Directions))],
			alive:     true,
		})
	}

	return m, nil
}

func (m *Match) ID() string { return m.id }

func (m *Match) AddListener(listener FrameListener) {
	m.listeners = append(m.listeners, listener)
}

// Run plays the match to the end. On cancellation the partial result is
// returned together with the context error.
func (m *Match) Run(ctx context.Context) (Result, error) {
	startedAt := time.Now()
	m.logger.Info("Match started", "players", len(m.seats), "size", fmt.Sprintf("%dx%d", m.config.Width, m.config.Height))

	for _, s := range m.seats {
		if observer, ok := s.agent.(MatchObserver); ok {
			observer.MatchStarted(m.id)
		}
	}

	var ticker *time.Ticker
	if m.config.FrameDuration > 0 {
		ticker = time.NewTicker(m.config.FrameDuration)
		defer ticker.Stop()
	}

	frame := 0
	reason := ""
	for reason == "" {
		state := m.snapshot(frame)

		switch alive := len(state.Players); {
		case alive == 1:
			reason = ReasonLastStanding
			continue
		case alive == 0:
			reason = ReasonNoSurvivors
			continue
		case frame >= m.config.MaxFrames:
			reason = ReasonFrameLimit
			continue
		}

		moves := m.collectDecisions(ctx, state)
		if ctx.Err() != nil {
			reason = ReasonCancelled
			break
		}

		applied, eliminated := m.step(frame, moves)
		m.publish(Frame{
			MatchID:    m.id,
			State:      state,
			Moves:      applied,
			Eliminated: eliminated,
		})
		frame++

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				reason = ReasonCancelled
			}
		}
	}

	m.pending.Wait()

	result := m.result(frame, reason, startedAt)
	m.publish(Frame{MatchID: m.id, State: m.snapshot(frame), Result: &result})

	for _, s := range m.seats {
		if observer, ok := s.agent.(MatchObserver); ok {
			observer.MatchEnded(result)
		}
	}

	m.logger.Info("Match over", "winner", result.Winner, "reason", reason, "frames", frame)
	if reason == ReasonCancelled {
		return result, ctx.Err()
	}
	return result, nil
}

// snapshot builds the board the agents see. It owns a copy of the grid so
// late deciders never race the next step.
func (m *Match) snapshot(frame int) game.GameState {
	state := game.GameState{Frame: frame, Grid: m.grid.Clone()}
	for _, s := range m.seats {
		if s.alive {
			state.Players = append(state.Players, s.player)
		}
	}
	return state
}

// collectDecisions asks every alive agent for a move and waits until all have
// answered or the move timeout expires. An agent still busy with an earlier
// frame is not asked again.
func (m *Match) collectDecisions(ctx context.Context, state game.GameState) map[int]game.Direction {
	ctx, cancel := context.WithTimeout(ctx, m.config.MoveTimeout)
	defer cancel()

	results := make(chan decision, len(m.seats))
	var wg sync.WaitGroup

	for i, s := range m.seats {
		if !s.alive {
			continue
		}
		if !s.inFlight.CompareAndSwap(false, true) {
			m.logger.Debug("Agent still deciding a previous frame", "bot", s.player.Name, "frame", state.Frame)
			continue
		}

		wg.Add(1)
		m.pending.Add(1)
		go func(i int, s *seat) {
			defer m.pending.Done()
			defer wg.Done()
			defer s.inFlight.Store(false)
			direction, err := s.agent.Decide(ctx, state.Clone())
			results <- decision{seat: i, direction: direction, err: err}
		}(i, s)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
	case <-ctx.Done():
	}

	moves := make(map[int]game.Direction, len(m.seats))
	for {
		select {
		case d := <-results:
			if d.err != nil {
				level := log.WarnLevel
				if errors.Is(d.err, context.DeadlineExceeded) {
					level = log.DebugLevel
				}
				m.logger.Log(level, "Decision failed, keeping direction", "bot", m.seats[d.seat].player.Name, "frame", state.Frame, "error", d.err)
				continue
			}
			if d.direction.IsValid() {
				moves[d.seat] = d.direction
			}
		default:
			return moves
		}
	}
}

// step advances every alive head one cell. It returns the direction each
// player moved in and the names eliminated. A head dies when its destination
// is outside the grid, already occupied, or the destination of another head in
// the same frame. Dead trails are cleared.
func (m *Match) step(frame int, moves map[int]game.Direction) (map[string]game.Direction, []string) {
	applied := make(map[string]game.Direction, len(m.seats))
	destinations := make(map[int]game.Coordinate, len(m.seats))
	claims := make(map[game.Coordinate]int, len(m.seats))

	for i, s := range m.seats {
		if !s.alive {
			continue
		}
		if direction, ok := moves[i]; ok {
			s.direction = direction
		}
		applied[s.player.Name] = s.direction
		next := s.player.Head.Add(s.direction.Delta())
		destinations[i] = next
		claims[next]++
	}

	var crashed []int
	for i, next := range destinations {
		if !m.grid.IsFree(next) || claims[next] > 1 {
			crashed = append(crashed, i)
		}
	}
	sort.Ints(crashed)

	var eliminated []string
	for _, i := range crashed {
		s := m.seats[i]
		s.alive = false
		s.eliminatedAt = frame + 1
		m.grid.ClearMarker(s.player.Color)
		eliminated = append(eliminated, s.player.Name)
		delete(destinations, i)
		m.logger.Info("Player eliminated", "bot", s.player.Name, "frame", frame, "at", s.player.Head)
	}

	for i, next := range destinations {
		s := m.seats[i]
		m.grid.Set(next, s.player.Color)
		s.player.Head = next
	}

	return applied, eliminated
}

func (m *Match) publish(frame Frame) {
	for _, listener := range m.listeners {
		listener.OnFrame(frame)
	}
}

// result ranks survivors first, then everyone else by how long they lasted.
// Players eliminated in the same frame share a place.
func (m *Match) result(frames int, reason string, startedAt time.Time) Result {
	result := Result{
		MatchID:   m.id,
		Reason:    reason,
		Frames:    frames,
		StartedAt: startedAt,
		EndedAt:   time.Now(),
	}

	for _, s := range m.seats {
		lasted := frames
		if !s.alive {
			lasted = s.eliminatedAt
		}
		result.Placements = append(result.Placements, Placement{
			Name:     s.player.Name,
			Frames:   lasted,
			Survived: s.alive,
		})
	}

	sort.SliceStable(result.Placements, func(i, j int) bool {
		a, b := result.Placements[i], result.Placements[j]
		if a.Survived != b.Survived {
			return a.Survived
		}
		return a.Frames > b.Frames
	})
	for i := range result.Placements {
		p, prev := result.Placements[i], Placement{}
		if i > 0 {
			prev = result.Placements[i-1]
		}
		if i > 0 && p.Survived == prev.Survived && p.Frames == prev.Frames {
			result.Placements[i].Place = prev.Place
			continue
		}
		result.Placements[i].Place = i + 1
	}

	if reason == ReasonLastStanding {
		result.Winner = result.Placements[0].Name
	}
	return result
}
