package potential

import (
	"github.com/talgya/evacuation-ca/internal/entropy"
	"github.com/talgya/evacuation-ca/internal/world"
)

// Dynamic is the crowd-presence field overlaying a grid. Intensities are
// non-negative integers indexed by cell ID.
type Dynamic struct {
	grid      *world.Grid
	intensity []int
}

// NewDynamic creates an all-zero field over the grid.
func NewDynamic(g *world.Grid) *Dynamic {
	return &Dynamic{grid: g, intensity: make([]int, g.CellCount())}
}

// Potential returns the intensity at a cell; unknown cells read as zero.
func (d *Dynamic) Potential(c world.CellID) int {
	if c < 0 || int(c) >= len(d.intensity) {
		return 0
	}
	return d.intensity[c]
}

// Increase adds one unit of presence at c.
func (d *Dynamic) Increase(c world.CellID) {
	if c >= 0 && int(c) < len(d.intensity) {
		d.intensity[c]++
	}
}

// Decrease removes one unit at c, never going below zero.
func (d *Dynamic) Decrease(c world.CellID) {
	if c >= 0 && int(c) < len(d.intensity) && d.intensity[c] > 0 {
		d.intensity[c]--
	}
}

// Total returns the summed intensity of the field.
func (d *Dynamic) Total() int {
	sum := 0
	for _, v := range d.intensity {
		sum += v
	}
	return sum
}

// Update runs one diffusion/decay round. Occupied cells gain a unit with
// probability increase. Every other cell with presence spreads a unit to a
// random neighbor with probability increase and loses a unit with
// probability decrease. Draws are taken against the field as it was before
// the round, in cell ID order.
func (d *Dynamic) Update(rng *entropy.Source, increase, decrease float64) {
	delta := make([]int, len(d.intensity))
	for _, c := range d.grid.Cells() {
		if c.IsOccupied() {
			if rng.Chance(increase) {
				delta[c.ID]++
			}
			continue
		}
		if d.intensity[c.ID] == 0 {
			continue
		}
		if rng.Chance(increase) {
			if ns := d.grid.Neighbors(c); len(ns) > 0 {
				delta[ns[rng.Intn(len(ns))].ID]++
			}
		}
		if rng.Chance(decrease) {
			delta[c.ID]--
		}
	}
	for i, v := range delta {
		d.intensity[i] = max(0, d.intensity[i]+v)
	}
}
