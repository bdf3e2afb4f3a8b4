package engine

import (
	"fmt"
	"math/rand"
)

// Policy names a FallbackStrategy.
type Policy string

const (
	PolicyArea    Policy = "area"
	PolicyInertia Policy = "inertia"
)

const (
	DefaultMaxAttempts = 200
	DefaultMaxInertia  = 50
)

type Config struct {
	// MaxAttempts bounds the fallback retries within one frame.
	MaxAttempts int `yaml:"max_attempts"`
	// MaxInertia is the upper bound of the inertia drawn per session.
	MaxInertia int    `yaml:"max_inertia"`
	Policy     Policy `yaml:"policy"`
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		MaxInertia:  DefaultMaxInertia,
		Policy:      PolicyArea,
	}
}

func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.MaxInertia < 0 {
		return fmt.Errorf("max inertia must not be negative, got %d", c.MaxInertia)
	}
	if _, err := c.newFallback(nil); err != nil {
		return err
	}
	return nil
}

func (c Config) newFallback(rng *rand.Rand) (FallbackStrategy, error) {
	switch c.Policy {
	case PolicyArea, "":
		return &AreaFallback{}, nil
	case PolicyInertia:
		return NewInertiaFallback(rng), nil
	}
	return nil, fmt.Errorf("unknown fallback policy %q", c.Policy)
}
