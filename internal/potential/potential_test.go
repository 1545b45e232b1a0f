package potential

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacuation-ca/internal/entropy"
	"github.com/talgya/evacuation-ca/internal/simerr"
	"github.com/talgya/evacuation-ca/internal/world"
)

// corridor builds a 1-row room whose last cell is an exit.
func corridor(t *testing.T, length int) (*world.Grid, []*world.Cell) {
	t.Helper()
	g := world.NewGrid()
	r, err := g.AddRoom("corridor", length, 1, 0, 0, 0)
	require.NoError(t, err)
	cells := make([]*world.Cell, length)
	for x := 0; x < length; x++ {
		kind := world.KindRoom
		if x == length-1 {
			kind = world.KindExit
		}
		cells[x], err = g.AddCell(r.ID, x, 0, kind)
		require.NoError(t, err)
	}
	return g, cells
}

func field(id int, attractivity float64, pot map[world.CellID]int) *Static {
	s := NewStatic(id, "f")
	s.Attractivity = attractivity
	for c, v := range pot {
		s.SetPotential(c, v)
		s.SetDistance(c, float64(v))
	}
	return s
}

func TestCompute_Corridor(t *testing.T) {
	g, cells := corridor(t, 4)
	s, err := Compute(g, 0, "east", cells[3:])
	require.NoError(t, err)

	assert.Equal(t, 0, s.Potential(cells[3].ID))
	assert.Equal(t, 10, s.Potential(cells[2].ID))
	assert.Equal(t, 30, s.Potential(cells[0].ID))
	assert.Equal(t, 3.0, s.Distance(cells[0].ID))
	assert.Equal(t, []world.CellID{cells[3].ID}, s.Exits())
}

func TestCompute_DiagonalAndUnreachable(t *testing.T) {
	g := world.NewGrid()
	r, err := g.AddRoom("hall", 2, 2, 0, 0, 0)
	require.NoError(t, err)
	exit, err := g.AddCell(r.ID, 0, 0, world.KindExit)
	require.NoError(t, err)
	far, err := g.AddCell(r.ID, 1, 1, world.KindRoom)
	require.NoError(t, err)
	other, err := g.AddRoom("sealed", 1, 1, 0, 5, 5)
	require.NoError(t, err)
	caged, err := g.AddCell(other.ID, 0, 0, world.KindRoom)
	require.NoError(t, err)

	s, err := Compute(g, 0, "x", []*world.Cell{exit})
	require.NoError(t, err)
	assert.Equal(t, 14, s.Potential(far.ID))
	assert.InDelta(t, math.Sqrt2, s.Distance(far.ID), 1e-9)
	assert.Equal(t, Unreachable, s.Potential(caged.ID))
	assert.False(t, s.Reachable(caged.ID))

	_, err = Compute(g, 1, "none", nil)
	assert.ErrorIs(t, err, simerr.ErrConfiguration)
}

func TestCompute_ThroughDoor(t *testing.T) {
	g := world.NewGrid()
	a, _ := g.AddRoom("a", 2, 1, 0, 0, 0)
	b, _ := g.AddRoom("b", 2, 1, 0, 2, 0)
	start, _ := g.AddCell(a.ID, 0, 0, world.KindRoom)
	da, _ := g.AddCell(a.ID, 1, 0, world.KindDoor)
	db, _ := g.AddCell(b.ID, 0, 0, world.KindDoor)
	exit, _ := g.AddCell(b.ID, 1, 0, world.KindExit)
	require.NoError(t, g.Link(da.ID, db.ID))

	s, err := Compute(g, 0, "b", []*world.Cell{exit})
	require.NoError(t, err)
	assert.Equal(t, 30, s.Potential(start.ID))
}

func TestMerge_MinAndMean(t *testing.T) {
	a := field(0, 10, map[world.CellID]int{1: 5, 2: 3, 3: -1})
	b := field(1, 20, map[world.CellID]int{1: 2, 2: 9, 4: 7})
	c := field(2, 40, map[world.CellID]int{3: 6})
	a.AddExit(9)
	b.AddExit(8)
	b.AddExit(9)

	m := Merge(5, "merged", []*Static{a, b, c})
	assert.Equal(t, 2, m.Potential(1))
	assert.Equal(t, 3, m.Potential(2))
	assert.Equal(t, 6, m.Potential(3))
	assert.Equal(t, 7, m.Potential(4))
	assert.Equal(t, 2.0, m.Distance(1))
	assert.InDelta(t, 70.0/3.0, m.Attractivity, 1e-9)
	assert.Equal(t, []world.CellID{9, 8}, m.Exits())
	assert.Equal(t, 4, m.Len())
}

func TestMerge_Empty(t *testing.T) {
	m := Merge(0, "empty", nil)
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, DefaultAttractivity, m.Attractivity)
}

func TestMerge_SingleIsIdentity(t *testing.T) {
	a := field(0, 33, map[world.CellID]int{1: 5, 2: 3, 7: 0})
	m := Merge(1, "same", []*Static{a})
	assert.Equal(t, a.potential, m.potential)
	assert.Equal(t, a.distance, m.distance)
	assert.Equal(t, a.Attractivity, m.Attractivity)
}

func TestDynamic_Bounds(t *testing.T) {
	g, cells := corridor(t, 3)
	d := NewDynamic(g)
	d.Decrease(cells[0].ID)
	assert.Equal(t, 0, d.Potential(cells[0].ID))
	d.Increase(cells[0].ID)
	assert.Equal(t, 1, d.Potential(cells[0].ID))
	assert.Equal(t, 0, d.Potential(99))
}

func TestDynamic_UpdateOccupiedGrows(t *testing.T) {
	g, cells := corridor(t, 3)
	require.NoError(t, g.Place(cells[1], 0))
	d := NewDynamic(g)
	d.Update(entropy.New(1), 1, 0)
	assert.Equal(t, 1, d.Potential(cells[1].ID))
	assert.Equal(t, 1, d.Total())
}

func TestDynamic_UpdateDecays(t *testing.T) {
	g, cells := corridor(t, 3)
	d := NewDynamic(g)
	d.Increase(cells[0].ID)
	d.Increase(cells[0].ID)
	d.Update(entropy.New(1), 0, 1)
	assert.Equal(t, 1, d.Potential(cells[0].ID))
	d.Update(entropy.New(1), 0, 1)
	d.Update(entropy.New(1), 0, 1)
	assert.Equal(t, 0, d.Total())
}

func TestDynamic_UpdateReproducible(t *testing.T) {
	g, cells := corridor(t, 6)
	run := func() []int {
		d := NewDynamic(g)
		for _, c := range cells {
			d.Increase(c.ID)
		}
		rng := entropy.New(99)
		for i := 0; i < 20; i++ {
			d.Update(rng, 0.5, 0.3)
		}
		return d.intensity
	}
	assert.Equal(t, run(), run())
}

func TestManager_Lookups(t *testing.T) {
	g, cells := corridor(t, 5)
	m := NewManager(g)
	west, err := m.Create("west", cells[:1], 50)
	require.NoError(t, err)
	east, err := m.Create("east", cells[4:], 80)
	require.NoError(t, err)
	assert.Equal(t, 1, east.ID)

	assert.Equal(t, west, m.Nearest(cells[1].ID))
	assert.Equal(t, east, m.Nearest(cells[3].ID))
	// Equidistant: the later field wins.
	assert.Equal(t, east, m.Nearest(cells[2].ID))
	assert.Len(t, m.Reachable(cells[2].ID), 2)
	assert.Equal(t, []*Static{east}, m.ForExit(cells[4].ID))
	assert.Empty(t, m.ForExit(cells[2].ID))

	assert.ErrorIs(t, m.Add(west), simerr.ErrStateViolation)

	merged := m.Merge("all", m.Statics())
	assert.Equal(t, 2, merged.ID)
	assert.Equal(t, 0, merged.Potential(cells[0].ID))
	assert.Equal(t, 0, merged.Potential(cells[4].ID))
	assert.InDelta(t, 65.0, merged.Attractivity, 1e-9)

	assert.Contains(t, []*Static{west, east}, m.Random(entropy.New(3), cells[2].ID))
}
