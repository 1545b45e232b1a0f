package rules

import (
	"log/slog"

	"github.com/talgya/evacuation-ca/internal/individuals"
	"github.com/talgya/evacuation-ca/internal/world"
)

func notAlarmed(ctx *Context, cell *world.Cell) bool {
	_, st, ok := ctx.occupant(cell)
	return ok && !st.Alarmed
}

// reacted reports whether the elapsed time has reached the reaction time.
func reacted(ctx *Context, ind *individuals.Individual) bool {
	return float64(ctx.Step)*ctx.Params.SecondsPerStep() >= ind.ReactionTime
}

// Reaction alarms an individual once its reaction time has passed.
type Reaction struct{}

func (Reaction) Name() string { return "reaction" }

func (Reaction) Applicable(ctx *Context, cell *world.Cell) bool {
	return notAlarmed(ctx, cell)
}

func (Reaction) Execute(ctx *Context, cell *world.Cell) error {
	ind, st, _ := ctx.occupant(cell)
	if reacted(ctx, ind) {
		st.Alarmed = true
		slog.Debug("individual alarmed", "id", ind.ID, "step", ctx.Step)
	}
	return nil
}

// RoomAlarm behaves like Reaction but also alarms the room of an individual
// who reacts. Everyone standing in an alarmed room is alarmed at once.
type RoomAlarm struct{}

func (RoomAlarm) Name() string { return "reaction-room-alarm" }

func (RoomAlarm) Applicable(ctx *Context, cell *world.Cell) bool {
	return notAlarmed(ctx, cell)
}

func (RoomAlarm) Execute(ctx *Context, cell *world.Cell) error {
	ind, st, _ := ctx.occupant(cell)
	room := ctx.Grid.RoomOf(cell)
	switch {
	case room.Alarmed:
		st.Alarmed = true
	case reacted(ctx, ind):
		st.Alarmed = true
		room.Alarmed = true
		slog.Debug("room alarmed", "room", room.Name, "by", ind.ID, "step", ctx.Step)
	}
	return nil
}
