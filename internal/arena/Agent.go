// Package arena runs light-cycle matches between house bots, scripted bots
// and remote bots, and keeps their results and replays.
package arena

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/Mshel/cycles/internal/engine"
	"github.com/Mshel/cycles/internal/game"
	"github.com/charmbracelet/log"
)

// Agent picks a move for one frame. Decide is never called concurrently for
// the same agent.
type Agent interface {
	Name() string
	Decide(ctx context.Context, state game.GameState) (game.Direction, error)
}

// MatchObserver is implemented by agents that want to hear about match
// boundaries.
type MatchObserver interface {
	MatchStarted(matchID string)
	MatchEnded(result Result)
}

// HouseBot plays with an in-process decision engine. Each match gets a fresh
// engine so previous direction and inertia do not leak between matches.
type HouseBot struct {
	name   string
	config engine.Config
	rng    *rand.Rand
	logger *log.Logger
	engine *engine.DecisionEngine
}

func NewHouseBot(name string, config engine.Config, rng *rand.Rand, logger *log.Logger) (*HouseBot, error) {
	if logger == nil {
		logger = log.Default()
	}
	bot := &HouseBot{name: name, config: config, rng: rng, logger: logger}
	if err := bot.reset(); err != nil {
		return nil, err
	}
	return bot, nil
}

func (b *HouseBot) Name() string { return b.name }

func (b *HouseBot) Decide(_ context.Context, state game.GameState) (game.Direction, error) {
	return b.engine.Decide(state)
}

func (b *HouseBot) MatchStarted(matchID string) {
	if err := b.reset(); err != nil {
		b.logger.Error("Could not reset house bot", "bot", b.name, "match", matchID, "error", err)
	}
}

func (b *HouseBot) MatchEnded(Result) {}

func (b *HouseBot) reset() error {
	e, err := engine.NewDecisionEngine(b.name, b.config, b.rng, b.logger)
	if err != nil {
		return fmt.Errorf("house bot %s: %w", b.name, err)
	}
	b.engine = e
	return nil
}

// NewResidents builds the house and lua bots named in config. Every bot gets
// its own random source derived from rng.
func NewResidents(config Config, rng *rand.Rand, logger *log.Logger) ([]Agent, error) {
	var agents []Agent

	for _, botConfig := range config.HouseBots {
		botRng := rand.New(rand.NewSource(rng.Int63()))
		bot, err := NewHouseBot(botConfig.Name, botConfig.Engine, botRng, logger)
		if err != nil {
			return nil, err
		}
		agents = append(agents, bot)
	}

	for _, botConfig := range config.LuaBots {
		bot, err := NewLuaBotFromFile(botConfig.Name, botConfig.Script, logger)
		if err != nil {
			return nil, err
		}
		agents = append(agents, bot)
	}

	return agents, nil
}
