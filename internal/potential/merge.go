package potential

import "github.com/talgya/evacuation-ca/internal/world"

// Merge combines fields into a new one with the given identity. At every cell
// mapped by any input the potential is the minimum over the inputs that
// define a non-negative value there; distances merge the same way.
// Attractivity is the mean of the inputs and exits are their ordered union.
// Merging nothing yields an empty field with the default attractivity.
func Merge(id int, name string, fields []*Static) *Static {
	merged := NewStatic(id, name)
	if len(fields) == 0 {
		return merged
	}
	total := 0.0
	for _, f := range fields {
		total += f.Attractivity
		for _, c := range f.Cells() {
			if _, done := merged.potential[c]; done {
				continue
			}
			merged.SetPotential(c, minPotential(c, fields))
		}
		for c := range f.distance {
			if _, done := merged.distance[c]; done {
				continue
			}
			merged.SetDistance(c, minDistance(c, fields))
		}
		for _, e := range f.exits {
			merged.AddExit(e)
		}
	}
	merged.Attractivity = total / float64(len(fields))
	return merged
}

func minPotential(c world.CellID, fields []*Static) int {
	m := Unreachable
	for _, f := range fields {
		if v := f.Potential(c); v >= 0 && (m < 0 || v < m) {
			m = v
		}
	}
	return m
}

func minDistance(c world.CellID, fields []*Static) float64 {
	m := float64(Unreachable)
	for _, f := range fields {
		if v := f.Distance(c); v >= 0 && (m < 0 || v < m) {
			m = v
		}
	}
	return m
}
