package engine

import (
	"math"
	"sort"

	"github.com/talgya/evacuation-ca/internal/individuals"
)

// iterationOrder returns the remaining individuals in the order the
// configured policy visits them. Potentials are read on every comparison
// rather than cached.
func (s *Simulation) iterationOrder() []*individuals.Individual {
	remaining := s.ctx.Registry.Remaining()
	switch s.Config.Order {
	case OrderFrontToBack:
		sort.SliceStable(remaining, func(i, j int) bool {
			return s.exitDistance(remaining[i]) < s.exitDistance(remaining[j])
		})
	case OrderBackToFront:
		sort.SliceStable(remaining, func(i, j int) bool {
			return s.exitDistance(remaining[i]) > s.exitDistance(remaining[j])
		})
	}
	return remaining
}

// exitDistance is the distance along the individual's static potential from
// its current cell. Unassigned or uncovered cells sort last.
func (s *Simulation) exitDistance(ind *individuals.Individual) float64 {
	st, err := s.ctx.Registry.StateOf(ind.ID)
	if err != nil || st.Static == nil {
		return math.Inf(1)
	}
	d := st.Static.Distance(st.Cell)
	if d < 0 {
		return math.Inf(1)
	}
	return d
}
