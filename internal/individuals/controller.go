package individuals

import (
	"fmt"
	"log/slog"

	"github.com/talgya/evacuation-ca/internal/world"
)

type deathOrder struct {
	id    ID
	cause DeathCause
}

// Controller collects evacuations and deaths decided during a step and
// applies them afterwards, so the iteration over remaining individuals is
// never mutated while it runs.
type Controller struct {
	reg  *Registry
	grid *world.Grid

	evacuate []ID
	kill     []deathOrder
	marked   map[ID]bool
}

// NewController creates a controller over the registry and grid.
func NewController(reg *Registry, g *world.Grid) *Controller {
	return &Controller{reg: reg, grid: g, marked: make(map[ID]bool)}
}

// Evacuate schedules id to leave the building at the end of the step.
func (c *Controller) Evacuate(id ID) {
	if c.marked[id] {
		return
	}
	c.marked[id] = true
	c.evacuate = append(c.evacuate, id)
}

// Kill schedules id to die with cause at the end of the step.
func (c *Controller) Kill(id ID, cause DeathCause) {
	if c.marked[id] {
		return
	}
	c.marked[id] = true
	c.kill = append(c.kill, deathOrder{id: id, cause: cause})
}

// Marked reports whether id is scheduled for removal.
func (c *Controller) Marked(id ID) bool {
	return c.marked[id]
}

// Pending returns the number of scheduled removals.
func (c *Controller) Pending() int {
	return len(c.evacuate) + len(c.kill)
}

// Flush applies every scheduled removal: the registry sets change and the
// individual's cell is vacated. step is recorded as the evacuation time.
func (c *Controller) Flush(step int) error {
	for _, id := range c.evacuate {
		if err := c.reg.MarkEvacuated(id, step); err != nil {
			return fmt.Errorf("flush evacuation: %w", err)
		}
		c.vacate(id)
		slog.Debug("individual evacuated", "id", id, "step", step)
	}
	for _, k := range c.kill {
		if err := c.reg.MarkDead(k.id, k.cause); err != nil {
			return fmt.Errorf("flush death: %w", err)
		}
		c.vacate(k.id)
		slog.Debug("individual died", "id", k.id, "cause", k.cause, "step", step)
	}
	c.evacuate = c.evacuate[:0]
	c.kill = c.kill[:0]
	clear(c.marked)
	return nil
}

func (c *Controller) vacate(id ID) {
	st := c.reg.states[id]
	if cell := c.grid.Cell(st.Cell); cell != nil {
		if occ, ok := cell.Occupant(); ok && ID(occ) == id {
			c.grid.Vacate(cell)
		}
	}
}
