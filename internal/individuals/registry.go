package individuals

import (
	"fmt"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

// ErrUnknownIndividual is returned for operations on an individual the
// registry does not track, or no longer tracks as remaining.
var ErrUnknownIndividual = fmt.Errorf("%w: unknown individual", simerr.ErrStateViolation)

// Registry is the single owner of individual state. It keeps the
// registration order and the membership sets: remaining, safe, evacuated
// and dead. Evacuated and dead individuals are never remaining; safe is
// independent of remaining.
type Registry struct {
	all    []*Individual
	byID   map[ID]*Individual
	states map[ID]*State

	remaining mapset.Set[ID]
	safe      mapset.Set[ID]
	evacuated mapset.Set[ID]
	dead      mapset.Set[ID]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:      make(map[ID]*Individual),
		states:    make(map[ID]*State),
		remaining: mapset.New[ID](),
		safe:      mapset.New[ID](),
		evacuated: mapset.New[ID](),
		dead:      mapset.New[ID](),
	}
}

// Add registers an individual standing on the given cell.
func (r *Registry) Add(ind *Individual, cell world.CellID) error {
	if _, dup := r.byID[ind.ID]; dup {
		return fmt.Errorf("%w: individual %d registered twice", simerr.ErrStateViolation, ind.ID)
	}
	r.all = append(r.all, ind)
	r.byID[ind.ID] = ind
	r.states[ind.ID] = newState(ind, cell)
	r.remaining.Put(ind.ID)
	return nil
}

// Individual returns the identity record for id.
func (r *Registry) Individual(id ID) (*Individual, bool) {
	ind, ok := r.byID[id]
	return ind, ok
}

// StateOf returns the mutable state of a tracked individual.
func (r *Registry) StateOf(id ID) (*State, error) {
	st, ok := r.states[id]
	if !ok {
		return nil, fmt.Errorf("state of %d: %w", id, ErrUnknownIndividual)
	}
	return st, nil
}

// All returns every registered individual in registration order.
func (r *Registry) All() []*Individual {
	return r.all
}

// Remaining returns the remaining individuals in registration order.
func (r *Registry) Remaining() []*Individual {
	out := make([]*Individual, 0, r.remaining.Size())
	for _, ind := range r.all {
		if r.remaining.Has(ind.ID) {
			out = append(out, ind)
		}
	}
	return out
}

// InitialCount returns the number of registered individuals.
func (r *Registry) InitialCount() int {
	return len(r.all)
}

// RemainingCount returns the number of individuals still inside.
func (r *Registry) RemainingCount() int {
	return r.remaining.Size()
}

// SafeCount returns the number of individuals that reached safety.
func (r *Registry) SafeCount() int {
	return r.safe.Size()
}

// EvacuatedCount returns the number of individuals that left the building.
func (r *Registry) EvacuatedCount() int {
	return r.evacuated.Size()
}

// DeadCount returns the number of dead individuals.
func (r *Registry) DeadCount() int {
	return r.dead.Size()
}

// IsRemaining reports whether id is still inside.
func (r *Registry) IsRemaining(id ID) bool {
	return r.remaining.Has(id)
}

// IsSafe reports whether id has reached a safe area.
func (r *Registry) IsSafe(id ID) bool {
	return r.safe.Has(id)
}

// IsEvacuated reports whether id left the building.
func (r *Registry) IsEvacuated(id ID) bool {
	return r.evacuated.Has(id)
}

// MarkSafe records that a remaining individual reached safety at step.
// Marking twice keeps the first safety time.
func (r *Registry) MarkSafe(id ID, step int) error {
	if !r.remaining.Has(id) {
		return fmt.Errorf("mark %d safe: %w", id, ErrUnknownIndividual)
	}
	if r.safe.Has(id) {
		return nil
	}
	r.safe.Put(id)
	r.states[id].SafetyTime = step
	return nil
}

// MarkEvacuated moves a remaining individual to the evacuated set.
func (r *Registry) MarkEvacuated(id ID, step int) error {
	if !r.remaining.Has(id) {
		return fmt.Errorf("mark %d evacuated: %w", id, ErrUnknownIndividual)
	}
	r.remaining.Remove(id)
	r.evacuated.Put(id)
	st := r.states[id]
	st.EvacuationTime = step
	if st.SafetyTime < 0 {
		st.SafetyTime = step
	}
	r.safe.Put(id)
	return nil
}

// MarkDead moves a remaining individual to the dead set with a cause.
func (r *Registry) MarkDead(id ID, cause DeathCause) error {
	if !r.remaining.Has(id) {
		return fmt.Errorf("mark %d dead (%s): %w", id, cause, ErrUnknownIndividual)
	}
	r.remaining.Remove(id)
	r.dead.Put(id)
	r.states[id].DeathCause = cause
	return nil
}

// Status classifies a registered individual.
func (r *Registry) Status(id ID) Status {
	switch {
	case r.dead.Has(id):
		return StatusDead
	case r.evacuated.Has(id):
		return StatusEvacuated
	case r.safe.Has(id):
		return StatusSafe
	default:
		return StatusActive
	}
}

// DeathCounts returns the number of deaths per cause.
func (r *Registry) DeathCounts() map[DeathCause]int {
	counts := make(map[DeathCause]int)
	r.dead.Each(func(id ID) {
		counts[r.states[id].DeathCause]++
	})
	return counts
}

// DeadWithCause returns the IDs that died of cause, sorted.
func (r *Registry) DeadWithCause(cause DeathCause) []ID {
	var out []ID
	r.dead.Each(func(id ID) {
		if r.states[id].DeathCause == cause {
			out = append(out, id)
		}
	})
	slices.Sort(out)
	return out
}

// Outcomes returns a copy of every individual's identity and state in
// registration order.
func (r *Registry) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(r.all))
	for _, ind := range r.all {
		st := r.states[ind.ID]
		o := Outcome{Individual: *ind, State: *st, Status: r.Status(ind.ID)}
		if st.Static != nil {
			o.Potential = st.Static.Name
		}
		out = append(out, o)
	}
	return out
}
