// Package params holds the named parameter sets that govern how panic,
// exhaustion, speed and idling evolve, and how movement targets are scored.
// Update formulas are expr programs compiled once per set.
package params

import (
	"fmt"
	"math"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/potential"
	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

// ErrUnknownParameterSet is returned by Lookup for unregistered names.
var ErrUnknownParameterSet = fmt.Errorf("%w: unknown parameter set", simerr.ErrConfiguration)

// Env is the evaluation environment of every formula.
type Env struct {
	Panic            float64
	PanicFactor      float64
	Exhaustion       float64
	ExhaustionFactor float64
	Slackness        float64
	Familiarity      float64
	RelativeSpeed    float64
	MaxSpeed         float64
	Age              float64
	Moved            bool
	Blocked          float64 // Preferred neighbors that were occupied
	Step             float64
}

// Formulas are the expr sources of a parameter set.
type Formulas struct {
	Panic      string `yaml:"panic"`
	Exhaustion string `yaml:"exhaustion"`
	Speed      string `yaml:"speed"`
	Idle       string `yaml:"idle"`
}

// Definition is the uncompiled form of a parameter set.
type Definition struct {
	Name string `yaml:"name"`

	StaticWeight  float64 `yaml:"static_weight"`
	DynamicWeight float64 `yaml:"dynamic_weight"`

	// Default dynamic-field probabilities used when the run does not set them.
	DynamicIncrease float64 `yaml:"dynamic_increase"`
	DynamicDecrease float64 `yaml:"dynamic_decrease"`

	CellSize         float64 `yaml:"cell_size"`          // Meters
	AbsoluteMaxSpeed float64 `yaml:"absolute_max_speed"` // Meters per second

	Formulas Formulas `yaml:"formulas"`
}

// ParameterSet is a compiled Definition.
type ParameterSet struct {
	Definition

	panic      *vm.Program
	exhaustion *vm.Program
	speed      *vm.Program
	idle       *vm.Program
}

// Compile validates a definition and compiles its formulas.
func Compile(def Definition) (*ParameterSet, error) {
	if def.CellSize <= 0 || def.AbsoluteMaxSpeed <= 0 {
		return nil, fmt.Errorf("%w: parameter set %q needs positive cell size and max speed",
			simerr.ErrConfiguration, def.Name)
	}
	ps := &ParameterSet{Definition: def}
	for _, f := range []struct {
		name string
		src  string
		dst  **vm.Program
	}{
		{"panic", def.Formulas.Panic, &ps.panic},
		{"exhaustion", def.Formulas.Exhaustion, &ps.exhaustion},
		{"speed", def.Formulas.Speed, &ps.speed},
		{"idle", def.Formulas.Idle, &ps.idle},
	} {
		prog, err := expr.Compile(f.src, expr.Env(Env{}), expr.AsFloat64())
		if err != nil {
			return nil, fmt.Errorf("%w: parameter set %q: compile %s formula: %v",
				simerr.ErrConfiguration, def.Name, f.name, err)
		}
		*f.dst = prog
	}
	return ps, nil
}

// SecondsPerStep is the real time one step stands for: the time to cross one
// cell at the absolute maximum speed.
func (ps *ParameterSet) SecondsPerStep() float64 {
	return ps.CellSize / ps.AbsoluteMaxSpeed
}

// EffectivePotential scores moving from ref to target for an individual
// following static. Higher is better. Targets the static field does not
// cover score as low as possible.
func (ps *ParameterSet) EffectivePotential(static *potential.Static, dyn *potential.Dynamic, ref, target world.CellID) float64 {
	if static == nil {
		return -math.MaxFloat64
	}
	to := static.Potential(target)
	if to < 0 {
		return -math.MaxFloat64
	}
	from := static.Potential(ref)
	if from < 0 {
		from = to
	}
	staticDiff := float64(from - to)
	dynDiff := 0.0
	if dyn != nil {
		dynDiff = float64(dyn.Potential(target) - dyn.Potential(ref))
	}
	return ps.StaticWeight*staticDiff + ps.DynamicWeight*dynDiff
}

func env(ind *individuals.Individual, st *individuals.State) Env {
	return Env{
		Panic:            st.Panic,
		PanicFactor:      ind.PanicFactor,
		Exhaustion:       st.Exhaustion,
		ExhaustionFactor: ind.ExhaustionFactor,
		Slackness:        ind.Slackness,
		Familiarity:      ind.Familiarity,
		RelativeSpeed:    st.RelativeSpeed,
		MaxSpeed:         ind.MaxSpeed,
		Age:              ind.Age,
	}
}

func (ps *ParameterSet) eval(prog *vm.Program, e Env) (float64, error) {
	out, err := vm.Run(prog, e)
	if err != nil {
		return 0, fmt.Errorf("parameter set %q: %w", ps.Name, err)
	}
	v, ok := out.(float64)
	if !ok || math.IsNaN(v) {
		return 0, fmt.Errorf("parameter set %q: formula returned %v", ps.Name, out)
	}
	return v, nil
}

// UpdatePanic recomputes panic after a movement decision in which blocked
// preferred neighbors were occupied.
func (ps *ParameterSet) UpdatePanic(ind *individuals.Individual, st *individuals.State, blocked int) error {
	e := env(ind, st)
	e.Blocked = float64(blocked)
	v, err := ps.eval(ps.panic, e)
	if err != nil {
		return err
	}
	st.Panic = v
	return nil
}

// UpdateExhaustion recomputes exhaustion; moved tells whether the individual
// walked this step.
func (ps *ParameterSet) UpdateExhaustion(ind *individuals.Individual, st *individuals.State, moved bool) error {
	e := env(ind, st)
	e.Moved = moved
	v, err := ps.eval(ps.exhaustion, e)
	if err != nil {
		return err
	}
	st.Exhaustion = v
	return nil
}

// UpdatePreferredSpeed recomputes the relative speed from panic and
// exhaustion.
func (ps *ParameterSet) UpdatePreferredSpeed(ind *individuals.Individual, st *individuals.State) error {
	v, err := ps.eval(ps.speed, env(ind, st))
	if err != nil {
		return err
	}
	if v <= 0 {
		return fmt.Errorf("parameter set %q: speed formula returned %v", ps.Name, v)
	}
	st.RelativeSpeed = v
	return nil
}

// IdleThreshold returns the probability that the individual idles this step.
func (ps *ParameterSet) IdleThreshold(ind *individuals.Individual, st *individuals.State) (float64, error) {
	return ps.eval(ps.idle, env(ind, st))
}

var registry = map[string]Definition{}

// Register adds a definition under its name, replacing any previous one.
// The formulas are compiled immediately.
func Register(def Definition) error {
	if _, err := Compile(def); err != nil {
		return err
	}
	registry[def.Name] = def
	return nil
}

// Lookup compiles the named parameter set.
func Lookup(name string) (*ParameterSet, error) {
	def, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownParameterSet)
	}
	return Compile(def)
}

// Names returns the registered set names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
