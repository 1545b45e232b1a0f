// Package rules implements the per-individual behavior pipeline. A rule is
// checked for applicability on an occupied cell and, if applicable, executed.
// Primary rules run once per individual at start; loop rules run every step
// in declared order.
package rules

import (
	"fmt"
	"slices"

	"github.com/talgya/evacuation-ca/internal/entropy"
	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/params"
	"github.com/talgya/evacuation-ca/internal/potential"
	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

// ErrUnknownRuleSet is returned by Lookup for unregistered names.
var ErrUnknownRuleSet = fmt.Errorf("%w: unknown rule set", simerr.ErrConfiguration)

// Rule is one unit of behavior applied to an occupied cell.
type Rule interface {
	Name() string
	// Applicable reports whether the rule acts on the cell. Inapplicable
	// rules are skipped silently.
	Applicable(ctx *Context, cell *world.Cell) bool
	// Execute applies the rule. Errors are reserved for broken invariants;
	// domain outcomes such as deaths go through the controller.
	Execute(ctx *Context, cell *world.Cell) error
}

// ExitMapping assigns individuals to a chosen exit cell before the run.
type ExitMapping map[individuals.ID]world.CellID

// Context is everything a rule may read or change. The simulation owns it
// and passes it to every call; there is no global state.
type Context struct {
	Grid       *world.Grid
	Registry   *individuals.Registry
	Potentials *potential.Manager
	Params     *params.ParameterSet
	Rand       *entropy.Source
	Controller *individuals.Controller

	ExitMapping ExitMapping
	// SafePotential is the merge of every exit field. Individuals follow it
	// once they reach a safe area, if set.
	SafePotential *potential.Static

	// Step is the current step counter.
	Step int
	// NeededTime is the latest step any move ends at.
	NeededTime int
}

// occupant returns the individual on the cell and its state. It reports
// false for empty cells and for individuals already scheduled for removal.
func (ctx *Context) occupant(cell *world.Cell) (*individuals.Individual, *individuals.State, bool) {
	raw, ok := cell.Occupant()
	if !ok {
		return nil, nil, false
	}
	id := individuals.ID(raw)
	if ctx.Controller.Marked(id) || !ctx.Registry.IsRemaining(id) {
		return nil, nil, false
	}
	ind, ok := ctx.Registry.Individual(id)
	if !ok {
		return nil, nil, false
	}
	st, err := ctx.Registry.StateOf(id)
	if err != nil {
		return nil, nil, false
	}
	return ind, st, true
}

// RuleSet is a named pair of ordered rule chains.
type RuleSet struct {
	Name    string
	Primary []Rule
	Loop    []Rule
}

// RuleNames returns the names of the primary and loop rules.
func (rs *RuleSet) RuleNames() (primary, loop []string) {
	for _, r := range rs.Primary {
		primary = append(primary, r.Name())
	}
	for _, r := range rs.Loop {
		loop = append(loop, r.Name())
	}
	return primary, loop
}

// Built-in rule set names.
const (
	DefaultSet      = "default"
	SwayingSet      = "swaying"
	ShortestPathSet = "shortest-path"
	RandomSet       = "random"
	ExitMappingSet  = "exit-mapping"
	RoomAlarmSet    = "room-alarm"
)

func loopRules(reaction Rule, movement Rule) []Rule {
	return []Rule{CageCheck{}, reaction, movement, Save{}, Evacuate{}}
}

var builders = map[string]func() *RuleSet{
	DefaultSet: func() *RuleSet {
		return &RuleSet{Primary: []Rule{Familiarity{}}, Loop: loopRules(Reaction{}, &Movement{})}
	},
	SwayingSet: func() *RuleSet {
		return &RuleSet{Primary: []Rule{Familiarity{}}, Loop: loopRules(Reaction{}, &Movement{Swaying: true})}
	},
	ShortestPathSet: func() *RuleSet {
		return &RuleSet{Primary: []Rule{ShortestPath{}}, Loop: loopRules(Reaction{}, &Movement{})}
	},
	RandomSet: func() *RuleSet {
		return &RuleSet{Primary: []Rule{RandomPotential{}}, Loop: loopRules(Reaction{}, &Movement{})}
	},
	ExitMappingSet: func() *RuleSet {
		return &RuleSet{Primary: []Rule{ExitMappingRule{}}, Loop: loopRules(Reaction{}, &Movement{})}
	},
	RoomAlarmSet: func() *RuleSet {
		return &RuleSet{Primary: []Rule{Familiarity{}}, Loop: loopRules(RoomAlarm{}, &Movement{})}
	},
}

// Lookup builds a fresh instance of the named rule set.
func Lookup(name string) (*RuleSet, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownRuleSet)
	}
	rs := build()
	rs.Name = name
	return rs, nil
}

// Names returns the built-in rule set names, sorted.
func Names() []string {
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
