package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/evacuation-ca/internal/entropy"
	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/params"
	"github.com/talgya/evacuation-ca/internal/potential"
	"github.com/talgya/evacuation-ca/internal/rules"
	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

// ErrTerminated is returned when stepping a finished simulation.
var ErrTerminated = errors.New("simulation already terminated")

// Placement puts one individual on a starting cell.
type Placement struct {
	Individual *individuals.Individual
	Cell       world.CellID
}

// Problem is a fully built scenario: a grid, its static potentials and the
// initial population.
type Problem struct {
	Grid        *world.Grid
	Potentials  *potential.Manager
	Population  []Placement
	ExitMapping rules.ExitMapping
}

// Phase is the lifecycle stage of a run.
type Phase uint8

const (
	PhaseInitialized Phase = iota
	PhaseStepping
	PhaseTerminated
)

var phaseNames = [...]string{"initialized", "stepping", "terminated"}

// String returns the phase name.
func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// ProgressFunc receives a completion fraction in [0, 1] and a message once
// per step. It must not block.
type ProgressFunc func(fraction float64, message string)

// Simulation holds the complete run state. It is single-threaded: only the
// goroutine driving it may call its methods.
type Simulation struct {
	Config   Config
	Rules    *rules.RuleSet
	Params   *params.ParameterSet
	Progress ProgressFunc

	ctx      *rules.Context
	phase    Phase
	increase float64
	decrease float64
	fraction float64
}

// Result is what a finished run reports.
type Result struct {
	Steps      int `json:"steps"`
	NeededTime int `json:"needed_time"`
	Stats
}

// Stats is a point-in-time summary of a run.
type Stats struct {
	Step        int            `json:"step"`
	Phase       string         `json:"phase"`
	Progress    float64        `json:"progress"`
	Initial     int            `json:"initial"`
	Remaining   int            `json:"remaining"`
	Safe        int            `json:"safe"`
	Evacuated   int            `json:"evacuated"`
	Dead        int            `json:"dead"`
	DeathCauses map[string]int `json:"death_causes"`
	Crowd       int            `json:"crowd"` // Summed dynamic potential
	Seed        int64          `json:"seed"`
}

// New validates the configuration, builds the registry and runs the primary
// rules once over every individual. Individuals they kill are removed before
// the simulation is returned.
//
// The simulation takes ownership of p.Grid and p.Potentials: it places the
// population on the grid and the run mutates room alarms and the dynamic
// field. A Problem backs a single simulation. If New fails, the individuals
// it placed are taken off the grid again.
func New(p Problem, cfg Config) (sim *Simulation, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rs, err := rules.Lookup(cfg.RuleSet)
	if err != nil {
		return nil, err
	}
	ps, err := params.Lookup(cfg.ParameterSet)
	if err != nil {
		return nil, err
	}
	if p.Grid == nil || p.Potentials == nil {
		return nil, fmt.Errorf("%w: problem needs a grid and a potential manager", simerr.ErrConfiguration)
	}

	if err := p.Grid.Validate(); err != nil {
		return nil, err
	}
	for _, r := range p.Grid.Rooms() {
		if r.OccupantCount() > 0 {
			return nil, fmt.Errorf("%w: %s already holds individuals", simerr.ErrStateViolation, r)
		}
	}

	var placed []*world.Cell
	defer func() {
		if err != nil {
			for _, c := range placed {
				p.Grid.Vacate(c)
			}
		}
	}()

	reg := individuals.NewRegistry()
	for _, pl := range p.Population {
		cell := p.Grid.Cell(pl.Cell)
		if cell == nil {
			return nil, fmt.Errorf("%w: individual %d starts on unknown cell %d",
				simerr.ErrInvalidTopology, pl.Individual.ID, pl.Cell)
		}
		if err := reg.Add(pl.Individual, pl.Cell); err != nil {
			return nil, err
		}
		if err := p.Grid.Place(cell, int(pl.Individual.ID)); err != nil {
			return nil, err
		}
		placed = append(placed, cell)
	}

	s := &Simulation{
		Config:   cfg,
		Rules:    rs,
		Params:   ps,
		increase: cfg.DynamicIncrease,
		decrease: cfg.DynamicDecrease,
		ctx: &rules.Context{
			Grid:        p.Grid,
			Registry:    reg,
			Potentials:  p.Potentials,
			Params:      ps,
			Rand:        entropy.New(cfg.Seed),
			Controller:  individuals.NewController(reg, p.Grid),
			ExitMapping: p.ExitMapping,
		},
	}
	if statics := p.Potentials.Statics(); len(statics) > 0 {
		s.ctx.SafePotential = p.Potentials.Merge("safe", statics)
	}
	if s.increase < 0 {
		s.increase = ps.DynamicIncrease
	}
	if s.decrease < 0 {
		s.decrease = ps.DynamicDecrease
	}

	for _, ind := range reg.Remaining() {
		if err := s.apply(ind, rs.Primary); err != nil {
			return nil, fmt.Errorf("initialize: %w", err)
		}
	}
	if err := s.ctx.Controller.Flush(0); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	slog.Info("simulation initialized",
		"individuals", reg.InitialCount(),
		"remaining", reg.RemainingCount(),
		"caged", reg.DeadCount(),
		"potentials", len(p.Potentials.Statics()),
		"rule_set", rs.Name,
		"parameter_set", ps.Name,
		"seed", s.ctx.Rand.Seed(),
	)
	return s, nil
}

// apply runs a rule chain on the individual's current cell. The cell is
// looked up before every rule since a rule may move the individual.
func (s *Simulation) apply(ind *individuals.Individual, chain []rules.Rule) error {
	for _, r := range chain {
		if s.ctx.Controller.Marked(ind.ID) {
			return nil
		}
		st, err := s.ctx.Registry.StateOf(ind.ID)
		if err != nil {
			return err
		}
		cell := s.ctx.Grid.Cell(st.Cell)
		if cell == nil {
			return fmt.Errorf("%w: individual %d stands on unknown cell %d",
				simerr.ErrInvalidTopology, ind.ID, st.Cell)
		}
		if !r.Applicable(s.ctx, cell) {
			continue
		}
		if err := r.Execute(s.ctx, cell); err != nil {
			return fmt.Errorf("rule %s on individual %d: %w", r.Name(), ind.ID, err)
		}
	}
	return nil
}

// Registry exposes the registry for result queries.
func (s *Simulation) Registry() *individuals.Registry {
	return s.ctx.Registry
}

// Grid returns the simulated grid.
func (s *Simulation) Grid() *world.Grid {
	return s.ctx.Grid
}

// CurrentStep returns the number of completed steps.
func (s *Simulation) CurrentStep() int {
	return s.ctx.Step
}

// NeededTime returns the latest step at which any move ends.
func (s *Simulation) NeededTime() int {
	return s.ctx.NeededTime
}

// Phase returns the lifecycle stage.
func (s *Simulation) Phase() Phase {
	return s.phase
}

// Step runs the loop rules once for every remaining individual, purges the
// individuals marked during the step, updates the dynamic field and
// advances the step counter.
func (s *Simulation) Step() error {
	if s.phase == PhaseTerminated {
		return ErrTerminated
	}
	s.phase = PhaseStepping
	reg := s.ctx.Registry

	for _, ind := range s.iterationOrder() {
		if !reg.IsRemaining(ind.ID) {
			continue
		}
		if err := s.apply(ind, s.Rules.Loop); err != nil {
			return fmt.Errorf("step %d: %w", s.ctx.Step, err)
		}
	}
	if err := s.ctx.Controller.Flush(s.ctx.Step); err != nil {
		return fmt.Errorf("step %d: %w", s.ctx.Step, err)
	}
	s.ctx.Potentials.Dynamic().Update(s.ctx.Rand, s.increase, s.decrease)
	s.ctx.Step++

	s.emit(fmt.Sprintf("step %d: %d remaining", s.ctx.Step, reg.RemainingCount()))
	slog.Debug("step complete",
		"step", s.ctx.Step,
		"remaining", reg.RemainingCount(),
		"evacuated", reg.EvacuatedCount(),
		"dead", reg.DeadCount(),
	)
	return nil
}

func (s *Simulation) emit(message string) {
	reg := s.ctx.Registry
	timeFrac := 1.0
	if s.Config.MaxSteps > 0 {
		timeFrac = float64(s.ctx.Step) / float64(s.Config.MaxSteps)
	}
	outFrac := 1.0
	if reg.InitialCount() > 0 {
		outFrac = 1 - float64(reg.RemainingCount())/float64(reg.InitialCount())
	}
	s.fraction = min(1, max(timeFrac, outFrac))
	if s.Progress != nil {
		s.Progress(s.fraction, message)
	}
}

// Finished reports whether the run should terminate: the step limit is
// reached, or every remaining individual is safe and has finished its last
// move.
func (s *Simulation) Finished() bool {
	if s.phase == PhaseTerminated || s.ctx.Step >= s.Config.MaxSteps {
		return true
	}
	reg := s.ctx.Registry
	for _, ind := range reg.Remaining() {
		if !reg.IsSafe(ind.ID) {
			return false
		}
		st, err := reg.StateOf(ind.ID)
		if err != nil {
			return false
		}
		if s.ctx.Step <= int(math.Ceil(st.StepEnd)) {
			return false
		}
	}
	return true
}

// Terminate kills every remaining individual that is not safe with cause
// NOT_ENOUGH_TIME and reports the result. Calling it again returns the
// same result.
func (s *Simulation) Terminate() (Result, error) {
	if s.phase != PhaseTerminated {
		reg := s.ctx.Registry
		for _, ind := range reg.Remaining() {
			if !reg.IsSafe(ind.ID) {
				s.ctx.Controller.Kill(ind.ID, individuals.CauseNotEnoughTime)
			}
		}
		if err := s.ctx.Controller.Flush(s.ctx.Step); err != nil {
			return Result{}, fmt.Errorf("terminate: %w", err)
		}
		s.phase = PhaseTerminated
		if s.Progress != nil {
			s.Progress(1, "simulation finished")
		}
		s.fraction = 1
		slog.Info("simulation terminated",
			"steps", s.ctx.Step,
			"needed_time", s.ctx.NeededTime,
			"evacuated", reg.EvacuatedCount(),
			"dead", reg.DeadCount(),
			"safe", reg.SafeCount(),
		)
	}
	return Result{Steps: s.ctx.Step, NeededTime: s.ctx.NeededTime, Stats: s.Stats()}, nil
}

// Stats summarizes the current state.
func (s *Simulation) Stats() Stats {
	reg := s.ctx.Registry
	causes := make(map[string]int)
	for cause, n := range reg.DeathCounts() {
		causes[cause.String()] = n
	}
	return Stats{
		Step:        s.ctx.Step,
		Phase:       s.phase.String(),
		Progress:    s.fraction,
		Initial:     reg.InitialCount(),
		Remaining:   reg.RemainingCount(),
		Safe:        reg.SafeCount(),
		Evacuated:   reg.EvacuatedCount(),
		Dead:        reg.DeadCount(),
		DeathCauses: causes,
		Crowd:       s.ctx.Potentials.Dynamic().Total(),
		Seed:        s.ctx.Rand.Seed(),
	}
}
