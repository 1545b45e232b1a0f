// Package potential holds the fields that steer individuals toward exits:
// static per-exit distance fields, their merge, and the dynamic crowd field.
package potential

import (
	"fmt"
	"slices"

	"github.com/talgya/evacuation-ca/internal/world"
)

// Unreachable is the potential and distance reported for unmapped cells.
const Unreachable = -1

// DefaultAttractivity is used for exits that do not set one.
const DefaultAttractivity = 100.0

// Static is a fixed field rooted at one or more exit cells. Potential is the
// integer guidance value; Distance is the real walking distance. Both are
// defined over the same cells but stored independently.
type Static struct {
	ID           int
	Name         string
	Attractivity float64

	exits     []world.CellID
	potential map[world.CellID]int
	distance  map[world.CellID]float64
}

// NewStatic creates an empty field.
func NewStatic(id int, name string) *Static {
	return &Static{
		ID:           id,
		Name:         name,
		Attractivity: DefaultAttractivity,
		potential:    make(map[world.CellID]int),
		distance:     make(map[world.CellID]float64),
	}
}

// Potential returns the potential of a cell, or Unreachable if unmapped.
func (s *Static) Potential(c world.CellID) int {
	if v, ok := s.potential[c]; ok {
		return v
	}
	return Unreachable
}

// SetPotential stores the potential of a cell.
func (s *Static) SetPotential(c world.CellID, v int) {
	s.potential[c] = v
}

// Distance returns the walking distance of a cell, or Unreachable if unmapped.
func (s *Static) Distance(c world.CellID) float64 {
	if v, ok := s.distance[c]; ok {
		return v
	}
	return Unreachable
}

// SetDistance stores the walking distance of a cell.
func (s *Static) SetDistance(c world.CellID, v float64) {
	s.distance[c] = v
}

// Reachable reports whether the field defines a non-negative distance at c.
func (s *Static) Reachable(c world.CellID) bool {
	return s.Distance(c) >= 0
}

// Exits returns the associated exit cells in insertion order.
func (s *Static) Exits() []world.CellID {
	return s.exits
}

// AddExit associates an exit cell. Duplicates are ignored.
func (s *Static) AddExit(c world.CellID) {
	if !slices.Contains(s.exits, c) {
		s.exits = append(s.exits, c)
	}
}

// HasExit reports whether c is one of the associated exits.
func (s *Static) HasExit(c world.CellID) bool {
	return slices.Contains(s.exits, c)
}

// Cells returns every cell with a potential, sorted by ID.
func (s *Static) Cells() []world.CellID {
	out := make([]world.CellID, 0, len(s.potential))
	for c := range s.potential {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of cells with a potential.
func (s *Static) Len() int {
	return len(s.potential)
}

// String returns a compact description for logs.
func (s *Static) String() string {
	return fmt.Sprintf("Static(id=%d, name=%q, cells=%d, exits=%v)", s.ID, s.Name, len(s.potential), s.exits)
}
