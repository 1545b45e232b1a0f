package rules

import (
	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/world"
)

// CageCheck kills individuals whose static potential does not cover the
// cell they stand on. Individuals already safe are never caged.
type CageCheck struct{}

func (CageCheck) Name() string { return "cage-check" }

func (CageCheck) Applicable(ctx *Context, cell *world.Cell) bool {
	ind, _, ok := ctx.occupant(cell)
	return ok && !ctx.Registry.IsSafe(ind.ID) && !cell.IsSafe()
}

func (CageCheck) Execute(ctx *Context, cell *world.Cell) error {
	ind, st, _ := ctx.occupant(cell)
	if st.Static == nil || st.Static.Potential(cell.ID) < 0 {
		ctx.Controller.Kill(ind.ID, individuals.CauseExitUnreachable)
	}
	return nil
}

// Save marks individuals standing on a safe cell as safe and records the
// step it happened.
type Save struct{}

func (Save) Name() string { return "save" }

func (Save) Applicable(ctx *Context, cell *world.Cell) bool {
	ind, _, ok := ctx.occupant(cell)
	return ok && cell.IsSafe() && !ctx.Registry.IsSafe(ind.ID)
}

func (Save) Execute(ctx *Context, cell *world.Cell) error {
	ind, st, _ := ctx.occupant(cell)
	if ctx.SafePotential != nil {
		st.Static = ctx.SafePotential
	}
	return ctx.Registry.MarkSafe(ind.ID, ctx.Step)
}

// Evacuate schedules individuals standing on an exit to leave.
type Evacuate struct{}

func (Evacuate) Name() string { return "evacuate" }

func (Evacuate) Applicable(ctx *Context, cell *world.Cell) bool {
	_, _, ok := ctx.occupant(cell)
	return ok && cell.IsExit()
}

func (Evacuate) Execute(ctx *Context, cell *world.Cell) error {
	ind, _, _ := ctx.occupant(cell)
	ctx.Controller.Evacuate(ind.ID)
	return nil
}
