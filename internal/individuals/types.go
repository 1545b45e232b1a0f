// Package individuals provides the occupant data model and the registry
// that owns every individual's mutable simulation state.
package individuals

import (
	"github.com/google/uuid"

	"github.com/talgya/evacuation-ca/internal/potential"
	"github.com/talgya/evacuation-ca/internal/world"
)

// ID is a unique identifier for an individual.
type ID int

// Individual is the fixed identity and attribute profile of an occupant.
// It never changes after spawning; everything that evolves lives in State.
type Individual struct {
	ID  ID        `json:"id"`
	UID uuid.UUID `json:"uid"`

	Age              float64 `json:"age"`               // Years
	Familiarity      float64 `json:"familiarity"`       // 0.0–1.0, knowledge of the building
	PanicFactor      float64 `json:"panic_factor"`      // 0.0–1.0
	Slackness        float64 `json:"slackness"`         // 0.0–1.0, tendency to idle
	ExhaustionFactor float64 `json:"exhaustion_factor"` // 0.0–1.0
	MaxSpeed         float64 `json:"max_speed"`         // Fraction of the absolute maximum speed
	ReactionTime     float64 `json:"reaction_time"`     // Seconds before responding to the alarm
}

// Status is the terminal classification of an individual.
type Status uint8

const (
	StatusActive    Status = iota // Still inside and not yet safe
	StatusSafe                    // Inside a safe area, still tracked
	StatusEvacuated               // Left through an exit
	StatusDead                    // Removed with a death cause
)

var statusNames = [...]string{"active", "safe", "evacuated", "dead"}

// String returns the status name.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DeathCause explains why an individual did not get out.
type DeathCause uint8

const (
	CauseNone DeathCause = iota
	CauseExitUnreachable
	CauseNotEnoughTime
)

var causeNames = [...]string{"NONE", "EXIT_UNREACHABLE", "NOT_ENOUGH_TIME"}

// String returns the cause name.
func (c DeathCause) String() string {
	if int(c) < len(causeNames) {
		return causeNames[c]
	}
	return "UNKNOWN"
}

// MarshalText encodes the cause by name.
func (c DeathCause) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// InitialPanic is the panic level every individual starts with.
const InitialPanic = 0.0001

// State is the mutable per-individual simulation state. The registry owns
// it; rules reach it only through the registry.
type State struct {
	Cell    world.CellID       `json:"cell"`
	Static  *potential.Static  `json:"-"`
	Dynamic *potential.Dynamic `json:"-"`

	Panic         float64          `json:"panic"`
	Exhaustion    float64          `json:"exhaustion"`
	RelativeSpeed float64          `json:"relative_speed"`
	Alarmed       bool             `json:"alarmed"`
	Direction     world.Direction8 `json:"direction"`

	StepStart float64 `json:"step_start"`
	StepEnd   float64 `json:"step_end"`

	// InitialDistance is the walking distance to the assigned exit at start;
	// MinExitDistance is the distance to the nearest reachable exit.
	InitialDistance float64 `json:"initial_distance"`
	MinExitDistance float64 `json:"min_exit_distance"`
	// SafetyTime is the step at which the individual became safe, -1 if never.
	SafetyTime int `json:"safety_time"`
	// EvacuationTime is the step of leaving the building, -1 if never.
	EvacuationTime int `json:"evacuation_time"`

	Moves int `json:"moves"`
	Waits int `json:"waits"`

	DeathCause DeathCause `json:"death_cause"`
}

func newState(ind *Individual, cell world.CellID) *State {
	return &State{
		Cell:            cell,
		Panic:           InitialPanic,
		RelativeSpeed:   ind.MaxSpeed,
		Direction:       world.Top,
		InitialDistance: potential.Unreachable,
		MinExitDistance: potential.Unreachable,
		SafetyTime:      -1,
		EvacuationTime:  -1,
	}
}

// Outcome is the final record of one individual, consumed by statistics
// and persistence.
type Outcome struct {
	Individual
	State
	Status    Status `json:"status"`
	Potential string `json:"potential,omitempty"`
}
