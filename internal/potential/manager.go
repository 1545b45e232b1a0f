package potential

import (
	"fmt"
	"log/slog"

	"github.com/talgya/evacuation-ca/internal/entropy"
	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

// Manager owns every static field of a scenario and the shared dynamic field.
type Manager struct {
	grid    *world.Grid
	statics []*Static
	byID    map[int]*Static
	dynamic *Dynamic
	nextID  int
}

// NewManager creates a manager with an empty dynamic field over the grid.
func NewManager(g *world.Grid) *Manager {
	return &Manager{
		grid:    g,
		byID:    make(map[int]*Static),
		dynamic: NewDynamic(g),
	}
}

// Dynamic returns the shared crowd field.
func (m *Manager) Dynamic() *Dynamic {
	return m.dynamic
}

// Statics returns the registered fields in registration order.
func (m *Manager) Statics() []*Static {
	return m.statics
}

// Add registers a field. IDs must be unique.
func (m *Manager) Add(s *Static) error {
	if _, dup := m.byID[s.ID]; dup {
		return fmt.Errorf("%w: static potential id %d registered twice", simerr.ErrStateViolation, s.ID)
	}
	m.statics = append(m.statics, s)
	m.byID[s.ID] = s
	m.nextID = max(m.nextID, s.ID+1)
	return nil
}

// Create computes a field rooted at the exit block and registers it.
func (m *Manager) Create(name string, exits []*world.Cell, attractivity float64) (*Static, error) {
	s, err := Compute(m.grid, m.nextID, name, exits)
	if err != nil {
		return nil, fmt.Errorf("create static potential %q: %w", name, err)
	}
	s.Attractivity = attractivity
	if err := m.Add(s); err != nil {
		return nil, err
	}
	slog.Debug("static potential computed", "id", s.ID, "name", name, "cells", s.Len(), "exits", len(exits))
	return s, nil
}

// Merge combines fields into a new unregistered one with a fresh ID.
func (m *Manager) Merge(name string, fields []*Static) *Static {
	s := Merge(m.nextID, name, fields)
	m.nextID++
	return s
}

// Reachable returns the fields with a non-negative distance at c, in
// registration order.
func (m *Manager) Reachable(c world.CellID) []*Static {
	var out []*Static
	for _, s := range m.statics {
		if s.Reachable(c) {
			out = append(out, s)
		}
	}
	return out
}

// Nearest returns the reachable field with the smallest distance at c, or nil.
// Ties go to the field registered last.
func (m *Manager) Nearest(c world.CellID) *Static {
	var best *Static
	for _, s := range m.Reachable(c) {
		if best == nil || s.Distance(c) <= best.Distance(c) {
			best = s
		}
	}
	return best
}

// Random returns a uniformly chosen field reachable from c, or nil.
func (m *Manager) Random(rng *entropy.Source, c world.CellID) *Static {
	reachable := m.Reachable(c)
	if len(reachable) == 0 {
		return nil
	}
	return reachable[rng.Intn(len(reachable))]
}

// ForExit returns the fields associated with the exit cell. More than one
// means the exit belongs to two potentials.
func (m *Manager) ForExit(exit world.CellID) []*Static {
	var out []*Static
	for _, s := range m.statics {
		if s.HasExit(exit) {
			out = append(out, s)
		}
	}
	return out
}
