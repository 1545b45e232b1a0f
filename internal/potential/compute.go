package potential

import (
	"fmt"
	"math"

	"github.com/zyedidia/generic/heap"

	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

// Step costs. Potentials use the integer 10/14 approximation so that a
// diagonal step is never cheaper than two orthogonal ones.
const (
	StraightPotential = 10
	DiagonalPotential = 14
	StraightDistance  = 1.0
)

// DiagonalDistance is the walking distance of one diagonal step.
var DiagonalDistance = math.Sqrt2

type frontier struct {
	cell world.CellID
	cost float64
}

// Compute builds a static field rooted at the given exit cells. Propagation
// runs over same-room neighbors and door links; cells with no path to any of
// the exits stay unmapped.
func Compute(g *world.Grid, id int, name string, exits []*world.Cell) (*Static, error) {
	if len(exits) == 0 {
		return nil, fmt.Errorf("%w: static potential %q has no exit cells", simerr.ErrConfiguration, name)
	}
	s := NewStatic(id, name)
	for _, e := range exits {
		if g.Cell(e.ID) != e {
			return nil, fmt.Errorf("%w: exit %s is not part of the grid", simerr.ErrInvalidTopology, e)
		}
		s.AddExit(e.ID)
	}

	pot := shortest(g, exits, StraightPotential, DiagonalPotential)
	dist := shortest(g, exits, StraightDistance, DiagonalDistance)
	for c, v := range pot {
		s.SetPotential(c, int(math.Round(v)))
	}
	for c, v := range dist {
		s.SetDistance(c, v)
	}
	return s, nil
}

// shortest runs Dijkstra from all sources at once.
func shortest(g *world.Grid, sources []*world.Cell, straight, diagonal float64) map[world.CellID]float64 {
	best := make(map[world.CellID]float64, g.CellCount())
	h := heap.New(func(a, b frontier) bool {
		if a.cost == b.cost {
			return a.cell < b.cell
		}
		return a.cost < b.cost
	})
	for _, c := range sources {
		best[c.ID] = 0
		h.Push(frontier{cell: c.ID, cost: 0})
	}
	for h.Size() > 0 {
		f, _ := h.Pop()
		if f.cost > best[f.cell] {
			continue
		}
		from := g.Cell(f.cell)
		for _, n := range g.Neighbors(from) {
			step := straight
			if g.IsDiagonalStep(from, n) {
				step = diagonal
			}
			cost := f.cost + step
			if old, ok := best[n.ID]; ok && old <= cost {
				continue
			}
			best[n.ID] = cost
			h.Push(frontier{cell: n.ID, cost: cost})
		}
	}
	return best
}
