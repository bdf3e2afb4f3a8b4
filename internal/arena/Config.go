package arena

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Mshel/cycles/internal/engine"
	"gopkg.in/yaml.v3"
)

const (
	PrivateKeyPathEnv = "CYCLES_PRIVATE_KEY_PATH"

	defaultListen         = "0.0.0.0:8080"
	defaultSSHAddress     = "0.0.0.0:6996"
	defaultHostKeyPath    = ".ssh/cycles_ed25519"
	defaultWidth          = 40
	defaultHeight         = 20
	defaultMinPlayers     = 2
	defaultMaxPlayers     = 8
	defaultMaxFrames      = 2000
	defaultFrameDuration  = 100 * time.Millisecond
	defaultMoveTimeout    = 80 * time.Millisecond
	defaultIntermission   = 3 * time.Second
	defaultDatabasePath   = "results.db"
	defaultMaxConnsPerIP  = 2
	maxPlayersPerMatch    = 64
	defaultLeaderboardTop = 10
)

// Config is the arena's yaml configuration. Zero fields take defaults.
type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`

	Match MatchConfig `yaml:"match"`

	MinPlayers   int           `yaml:"min_players"`
	Intermission time.Duration `yaml:"intermission"`

	DatabasePath string `yaml:"database_path"`
	// ReplayDir is where parquet replays go; empty disables recording.
	ReplayDir string `yaml:"replay_dir"`

	HouseBots []HouseBotConfig `yaml:"house_bots"`
	LuaBots   []LuaBotConfig   `yaml:"lua_bots"`

	SSH SSHConfig `yaml:"ssh"`
}

type MatchConfig struct {
	Width         int           `yaml:"width"`
	Height        int           `yaml:"height"`
	MaxPlayers    int           `yaml:"max_players"`
	MaxFrames     int           `yaml:"max_frames"`
	FrameDuration time.Duration `yaml:"frame_duration"`
	MoveTimeout   time.Duration `yaml:"move_timeout"`
	Seed          int64         `yaml:"seed"`
}

type HouseBotConfig struct {
	Name   string        `yaml:"name"`
	Engine engine.Config `yaml:"engine"`
}

type LuaBotConfig struct {
	Name   string `yaml:"name"`
	Script string `yaml:"script"`
}

type SSHConfig struct {
	Enabled             bool   `yaml:"enabled"`
	Address             string `yaml:"address"`
	HostKeyPath         string `yaml:"host_key_path"`
	MaxConnectionsPerIP int    `yaml:"max_connections_per_ip"`
	LeaderboardSize     int    `yaml:"leaderboard_size"`
}

func DefaultConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// LoadConfig reads path, applies defaults and the environment override, and
// validates the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	c.ApplyDefaults()
	if keyPath := os.Getenv(PrivateKeyPathEnv); keyPath != "" {
		c.SSH.HostKeyPath = keyPath
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MinPlayers == 0 {
		c.MinPlayers = defaultMinPlayers
	}
	if c.Intermission == 0 {
		c.Intermission = defaultIntermission
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaultDatabasePath
	}

	c.Match.applyDefaults()

	for i := range c.HouseBots {
		bot := &c.HouseBots[i]
		defaults := engine.DefaultConfig()
		if bot.Engine.MaxAttempts == 0 {
			bot.Engine.MaxAttempts = defaults.MaxAttempts
		}
		if bot.Engine.MaxInertia == 0 {
			bot.Engine.MaxInertia = defaults.MaxInertia
		}
		if bot.Engine.Policy == "" {
			bot.Engine.Policy = defaults.Policy
		}
	}

	if c.SSH.Address == "" {
		c.SSH.Address = defaultSSHAddress
	}
	if c.SSH.HostKeyPath == "" {
		c.SSH.HostKeyPath = defaultHostKeyPath
	}
	if c.SSH.MaxConnectionsPerIP == 0 {
		c.SSH.MaxConnectionsPerIP = defaultMaxConnsPerIP
	}
	if c.SSH.LeaderboardSize == 0 {
		c.SSH.LeaderboardSize = defaultLeaderboardTop
	}
}

func (m *MatchConfig) applyDefaults() {
	if m.Width == 0 {
		m.Width = defaultWidth
	}
	if m.Height == 0 {
		m.Height = defaultHeight
	}
	if m.MaxPlayers == 0 {
		m.MaxPlayers = defaultMaxPlayers
	}
	if m.MaxFrames == 0 {
		m.MaxFrames = defaultMaxFrames
	}
	if m.FrameDuration == 0 {
		m.FrameDuration = defaultFrameDuration
	}
	if m.MoveTimeout == 0 {
		m.MoveTimeout = defaultMoveTimeout
	}
}

func (c Config) Validate() error {
	var errs []error

	if err := c.Match.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MinPlayers < 2 {
		errs = append(errs, fmt.Errorf("min_players must be at least 2, got %d", c.MinPlayers))
	}
	if c.MinPlayers > c.Match.MaxPlayers {
		errs = append(errs, fmt.Errorf("min_players %d exceeds max_players %d", c.MinPlayers, c.Match.MaxPlayers))
	}

	names := map[string]bool{}
	checkName := func(kind, name string) {
		if name == "" {
			errs = append(errs, fmt.Errorf("%s needs a name", kind))
			return
		}
		if names[name] {
			errs = append(errs, fmt.Errorf("duplicate bot name %q", name))
		}
		names[name] = true
	}
	for _, bot := range c.HouseBots {
		checkName("house bot", bot.Name)
		if err := bot.Engine.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("house bot %s: %w", bot.Name, err))
		}
	}
	for _, bot := range c.LuaBots {
		checkName("lua bot", bot.Name)
		if bot.Script == "" {
			errs = append(errs, fmt.Errorf("lua bot %s needs a script", bot.Name))
		}
	}
	if len(names) > c.Match.MaxPlayers {
		errs = append(errs, fmt.Errorf("%d resident bots exceed max_players %d", len(names), c.Match.MaxPlayers))
	}

	if c.SSH.Enabled && c.SSH.MaxConnectionsPerIP < 1 {
		errs = append(errs, errors.New("ssh max_connections_per_ip must be positive"))
	}

	return errors.Join(errs...)
}

func (m MatchConfig) Validate() error {
	if m.Width < 2 || m.Height < 2 {
		return fmt.Errorf("board must be at least 2x2, got %dx%d", m.Width, m.Height)
	}
	if m.MaxPlayers < 2 || m.MaxPlayers > maxPlayersPerMatch {
		return fmt.Errorf("max_players must be between 2 and %d, got %d", maxPlayersPerMatch, m.MaxPlayers)
	}
	if m.MaxPlayers > m.Width*m.Height {
		return fmt.Errorf("%d players do not fit on a %dx%d board", m.MaxPlayers, m.Width, m.Height)
	}
	if m.MaxFrames < 1 {
		return fmt.Errorf("max_frames must be positive, got %d", m.MaxFrames)
	}
	if m.MoveTimeout <= 0 {
		return fmt.Errorf("move_timeout must be positive, got %s", m.MoveTimeout)
	}
	if m.FrameDuration < 0 {
		return fmt.Errorf("frame_duration must not be negative, got %s", m.FrameDuration)
	}
	return nil
}
