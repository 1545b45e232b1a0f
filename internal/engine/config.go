package engine

import (
	"fmt"

	"github.com/talgya/evacuation-ca/internal/params"
	"github.com/talgya/evacuation-ca/internal/rules"
	"github.com/talgya/evacuation-ca/internal/simerr"
)

// Order selects how remaining individuals are visited within a step.
type Order string

const (
	OrderDefault     Order = "default"       // Registration order
	OrderFrontToBack Order = "front-to-back" // Closest to an exit first
	OrderBackToFront Order = "back-to-front" // Farthest from an exit first
)

// Config holds the run parameters of a simulation.
type Config struct {
	// MaxSteps is the step limit. Individuals not safe when it is reached
	// die of NOT_ENOUGH_TIME.
	MaxSteps int `yaml:"max_steps"`

	// Dynamic-field probabilities. Negative values take the parameter
	// set's defaults.
	DynamicIncrease float64 `yaml:"dynamic_increase"`
	DynamicDecrease float64 `yaml:"dynamic_decrease"`

	RuleSet      string `yaml:"rule_set"`
	ParameterSet string `yaml:"parameter_set"`
	Order        Order  `yaml:"order"`

	// Seed of the single random source; 0 draws one.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns sensible defaults for a run.
func DefaultConfig() Config {
	return Config{
		MaxSteps:        1000,
		DynamicIncrease: -1,
		DynamicDecrease: -1,
		RuleSet:         rules.DefaultSet,
		ParameterSet:    params.DefaultSet,
		Order:           OrderDefault,
		Seed:            1,
	}
}

// Validate checks the settings that do not need a lookup.
func (c Config) Validate() error {
	if c.MaxSteps < 0 {
		return fmt.Errorf("%w: negative step limit %d", simerr.ErrConfiguration, c.MaxSteps)
	}
	if c.DynamicIncrease > 1 || c.DynamicDecrease > 1 {
		return fmt.Errorf("%w: dynamic probabilities must not exceed 1 (got %v, %v)",
			simerr.ErrConfiguration, c.DynamicIncrease, c.DynamicDecrease)
	}
	switch c.Order {
	case OrderDefault, OrderFrontToBack, OrderBackToFront:
	case "":
		return fmt.Errorf("%w: missing iteration order", simerr.ErrConfiguration)
	default:
		return fmt.Errorf("%w: unknown iteration order %q", simerr.ErrConfiguration, c.Order)
	}
	return nil
}
