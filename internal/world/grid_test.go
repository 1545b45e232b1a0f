package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/evacuation-ca/internal/simerr"
)

// openRoom builds a single fully walkable room.
func openRoom(t *testing.T, w, h int) (*Grid, *Room) {
	t.Helper()
	g := NewGrid()
	r, err := g.AddRoom("hall", w, h, 0, 0, 0)
	require.NoError(t, err)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			_, err := g.AddCell(r.ID, x, y, KindRoom)
			require.NoError(t, err)
		}
	}
	return g, r
}

func TestDirectionRotation(t *testing.T) {
	assert.Equal(t, 0, Rotation(Top, Top))
	assert.Equal(t, 1, Rotation(Top, TopRight))
	assert.Equal(t, 1, Rotation(Top, TopLeft))
	assert.Equal(t, 2, Rotation(Left, Top))
	assert.Equal(t, 4, Rotation(Top, Down))
	assert.Equal(t, 3, Rotation(Right, TopLeft))
	for _, d := range Directions {
		assert.Equal(t, d, d.Clockwise().CounterClockwise())
		assert.Equal(t, 4, Rotation(d, d.Opposite()))
	}
}

func TestDirectionOf(t *testing.T) {
	d, ok := DirectionOf(0, -1)
	assert.True(t, ok)
	assert.Equal(t, Top, d)
	d, ok = DirectionOf(3, 2)
	assert.True(t, ok)
	assert.Equal(t, DownRight, d)
	_, ok = DirectionOf(0, 0)
	assert.False(t, ok)
}

func TestGrid_NeighborsOpen(t *testing.T) {
	g, r := openRoom(t, 3, 3)
	center, err := g.CellAt(r.ID, 1, 1)
	require.NoError(t, err)
	ns := g.Neighbors(center)
	require.Len(t, ns, 8)
	for i, n := range ns {
		d, err := g.RelativeDirection(center, n)
		require.NoError(t, err)
		assert.Equal(t, Directions[i], d)
	}

	corner, err := g.CellAt(r.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, g.Neighbors(corner), 3)
}

func TestGrid_CellAtErrors(t *testing.T) {
	g := NewGrid()
	r, err := g.AddRoom("hall", 2, 2, 0, 0, 0)
	require.NoError(t, err)
	_, err = g.AddCell(r.ID, 0, 0, KindRoom)
	require.NoError(t, err)

	_, err = g.CellAt(r.ID, 5, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.ErrorIs(t, err, simerr.ErrInvalidTopology)

	_, err = g.CellAt(r.ID, 1, 1)
	assert.ErrorIs(t, err, ErrNoCell)

	_, err = g.AddCell(r.ID, 0, 0, KindRoom)
	assert.ErrorIs(t, err, simerr.ErrInvalidTopology)

	_, err = g.AddCell(r.ID, -1, 0, KindRoom)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = g.AddRoom("bad", 0, 3, 0, 0, 0)
	assert.ErrorIs(t, err, simerr.ErrInvalidTopology)
}

func TestGrid_DoorLinks(t *testing.T) {
	g := NewGrid()
	a, err := g.AddRoom("a", 2, 1, 0, 0, 0)
	require.NoError(t, err)
	b, err := g.AddRoom("b", 2, 1, 0, 2, 0)
	require.NoError(t, err)
	_, err = g.AddCell(a.ID, 0, 0, KindRoom)
	require.NoError(t, err)
	da, err := g.AddCell(a.ID, 1, 0, KindDoor)
	require.NoError(t, err)
	db, err := g.AddCell(b.ID, 0, 0, KindDoor)
	require.NoError(t, err)
	exit, err := g.AddCell(b.ID, 1, 0, KindExit)
	require.NoError(t, err)

	require.NoError(t, g.Link(da.ID, db.ID))
	require.NoError(t, g.Link(da.ID, db.ID))
	assert.Contains(t, g.Neighbors(da), db)
	assert.Contains(t, g.Neighbors(db), da)
	assert.Len(t, g.Neighbors(da), 2)

	d, err := g.RelativeDirection(da, db)
	require.NoError(t, err)
	assert.Equal(t, Right, d)

	assert.ErrorIs(t, g.Link(da.ID, exit.ID), simerr.ErrInvalidTopology)
	assert.Equal(t, []*Cell{exit}, g.Exits())
}

func TestGrid_Occupancy(t *testing.T) {
	g, r := openRoom(t, 2, 2)
	a, _ := g.CellAt(r.ID, 0, 0)
	b, _ := g.CellAt(r.ID, 1, 1)

	require.NoError(t, g.Place(a, 7))
	assert.ErrorIs(t, g.Place(a, 8), simerr.ErrStateViolation)
	assert.True(t, r.HasOccupant(7))
	assert.Len(t, g.FreeNeighbors(b), 2)

	require.NoError(t, g.Move(a, b))
	assert.False(t, a.IsOccupied())
	id, ok := b.Occupant()
	assert.True(t, ok)
	assert.Equal(t, 7, id)
	assert.Equal(t, 1, r.OccupantCount())
	require.NoError(t, g.Validate())

	g.Vacate(b)
	assert.Equal(t, 0, r.OccupantCount())
	assert.ErrorIs(t, g.Move(b, a), simerr.ErrStateViolation)
}
