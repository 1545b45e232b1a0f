package rules

import (
	"fmt"
	"math"
	"slices"

	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/potential"
	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

// initialApplicable holds for occupied cells whose individual has no static
// potential yet.
func initialApplicable(ctx *Context, cell *world.Cell) bool {
	_, st, ok := ctx.occupant(cell)
	return ok && st.Static == nil
}

// assign binds the chosen field and records the start distances. A nil
// choice kills the individual as caged.
func assign(ctx *Context, cell *world.Cell, chosen *potential.Static) {
	ind, st, _ := ctx.occupant(cell)
	reachable := ctx.Potentials.Reachable(cell.ID)
	if chosen == nil || len(reachable) == 0 {
		ctx.Controller.Kill(ind.ID, individuals.CauseExitUnreachable)
		return
	}
	st.Static = chosen
	st.Dynamic = ctx.Potentials.Dynamic()
	st.InitialDistance = chosen.Distance(cell.ID)
	st.MinExitDistance = math.MaxFloat64
	for _, s := range reachable {
		st.MinExitDistance = min(st.MinExitDistance, s.Distance(cell.ID))
	}
}

// Familiarity assigns a static potential based on how well the individual
// knows the building: the less familiar, the more of the nearest exits it
// weighs by attractivity instead of taking the nearest one.
type Familiarity struct{}

func (Familiarity) Name() string { return "initial-familiarity" }

func (Familiarity) Applicable(ctx *Context, cell *world.Cell) bool {
	return initialApplicable(ctx, cell)
}

func (Familiarity) Execute(ctx *Context, cell *world.Cell) error {
	ind, _, _ := ctx.occupant(cell)
	candidates := slices.Clone(ctx.Potentials.Reachable(cell.ID))
	if len(candidates) == 0 {
		assign(ctx, cell, nil)
		return nil
	}
	slices.SortStableFunc(candidates, func(a, b *potential.Static) int {
		da, db := a.Distance(cell.ID), b.Distance(cell.ID)
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})
	n := int(math.Floor((1-ind.Familiarity)*float64(len(candidates)) + 0.5))
	n = max(1, min(n, len(candidates)))
	best := 0
	for i := 1; i < n; i++ {
		if candidates[i].Attractivity > candidates[best].Attractivity {
			best = i
		}
	}
	assign(ctx, cell, candidates[best])
	return nil
}

// ShortestPath assigns the static potential with the smallest walking
// distance. Ties go to the field registered last.
type ShortestPath struct{}

func (ShortestPath) Name() string { return "initial-shortest-path" }

func (ShortestPath) Applicable(ctx *Context, cell *world.Cell) bool {
	return initialApplicable(ctx, cell)
}

func (ShortestPath) Execute(ctx *Context, cell *world.Cell) error {
	assign(ctx, cell, ctx.Potentials.Nearest(cell.ID))
	return nil
}

// RandomPotential assigns a uniformly chosen reachable static potential.
type RandomPotential struct{}

func (RandomPotential) Name() string { return "initial-random" }

func (RandomPotential) Applicable(ctx *Context, cell *world.Cell) bool {
	return initialApplicable(ctx, cell)
}

func (RandomPotential) Execute(ctx *Context, cell *world.Cell) error {
	assign(ctx, cell, ctx.Potentials.Random(ctx.Rand, cell.ID))
	return nil
}

// ExitMappingRule assigns the static potential of an externally chosen
// exit. Individuals without a mapping fall back to the shortest path.
type ExitMappingRule struct{}

func (ExitMappingRule) Name() string { return "initial-exit-mapping" }

func (ExitMappingRule) Applicable(ctx *Context, cell *world.Cell) bool {
	return initialApplicable(ctx, cell)
}

func (ExitMappingRule) Execute(ctx *Context, cell *world.Cell) error {
	ind, _, _ := ctx.occupant(cell)
	target, ok := ctx.ExitMapping[ind.ID]
	if !ok {
		assign(ctx, cell, ctx.Potentials.Nearest(cell.ID))
		return nil
	}
	fields := ctx.Potentials.ForExit(target)
	switch len(fields) {
	case 0:
		return fmt.Errorf("%w: individual %d mapped to exit %d without a static potential",
			simerr.ErrStateViolation, ind.ID, target)
	case 1:
	default:
		return fmt.Errorf("%w: exit %d belongs to %d static potentials",
			simerr.ErrStateViolation, target, len(fields))
	}
	chosen := fields[0]
	if !chosen.Reachable(cell.ID) {
		chosen = nil
	}
	assign(ctx, cell, chosen)
	return nil
}
