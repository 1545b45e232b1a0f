package world

import (
	"errors"
	"fmt"

	"github.com/talgya/evacuation-ca/internal/simerr"
)

var (
	// ErrOutOfBounds is returned for coordinates outside a room's rectangle.
	ErrOutOfBounds = fmt.Errorf("%w: coordinate out of bounds", simerr.ErrInvalidTopology)

	// ErrNoCell is returned for an in-bounds position that holds no cell.
	ErrNoCell = errors.New("no cell at position")

	// ErrOccupied is returned when placing an individual on an occupied cell.
	ErrOccupied = fmt.Errorf("%w: cell already occupied", simerr.ErrStateViolation)

	// ErrNoDirection is returned when two cells share a floor position.
	ErrNoDirection = fmt.Errorf("%w: cells have no relative direction", simerr.ErrInvalidTopology)
)

// Grid is the arena owning every room and cell of a building.
type Grid struct {
	rooms []*Room
	cells []*Cell
	links map[CellID][]CellID // Door-to-door connections, both directions
	exits []CellID
}

// NewGrid creates an empty grid.
func NewGrid() *Grid {
	return &Grid{links: make(map[CellID][]CellID)}
}

// AddRoom creates a room. The offsets place it on its floor.
func (g *Grid) AddRoom(name string, width, height, floor, xOff, yOff int) (*Room, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: room %q has size %dx%d", simerr.ErrInvalidTopology, name, width, height)
	}
	r := newRoom(RoomID(len(g.rooms)), name, width, height, floor, xOff, yOff)
	g.rooms = append(g.rooms, r)
	return r, nil
}

// AddCell creates a cell of the given kind at a room position.
func (g *Grid) AddCell(room RoomID, x, y int, kind CellKind) (*Cell, error) {
	r := g.Room(room)
	if r == nil {
		return nil, fmt.Errorf("%w: unknown room %d", simerr.ErrInvalidTopology, room)
	}
	if !r.InBounds(x, y) {
		return nil, fmt.Errorf("add cell (%d,%d) to %s: %w", x, y, r, ErrOutOfBounds)
	}
	if existing, ok := r.cellID(x, y); ok {
		return nil, fmt.Errorf("%w: position (%d,%d) of %s already holds cell %d",
			simerr.ErrInvalidTopology, x, y, r, existing)
	}
	c := &Cell{
		ID:          CellID(len(g.cells)),
		Room:        room,
		X:           x,
		Y:           y,
		Kind:        kind,
		SpeedFactor: 1.0,
		occupant:    Vacant,
	}
	g.cells = append(g.cells, c)
	r.cells[r.index(x, y)] = c.ID
	if kind == KindExit {
		g.exits = append(g.exits, c.ID)
	}
	return c, nil
}

// Link connects two door cells of different rooms so they become neighbors.
func (g *Grid) Link(a, b CellID) error {
	ca, cb := g.Cell(a), g.Cell(b)
	if ca == nil || cb == nil {
		return fmt.Errorf("%w: link %d-%d references an unknown cell", simerr.ErrInvalidTopology, a, b)
	}
	if !ca.IsDoor() || !cb.IsDoor() {
		return fmt.Errorf("%w: link %s-%s needs door cells on both ends", simerr.ErrInvalidTopology, ca, cb)
	}
	if ca.Room == cb.Room {
		return fmt.Errorf("%w: link %s-%s stays inside one room", simerr.ErrInvalidTopology, ca, cb)
	}
	for _, existing := range g.links[a] {
		if existing == b {
			return nil
		}
	}
	g.links[a] = append(g.links[a], b)
	g.links[b] = append(g.links[b], a)
	return nil
}

// Cell returns the cell with the given ID, or nil if it does not exist.
func (g *Grid) Cell(id CellID) *Cell {
	if id < 0 || int(id) >= len(g.cells) {
		return nil
	}
	return g.cells[id]
}

// Room returns the room with the given ID, or nil if it does not exist.
func (g *Grid) Room(id RoomID) *Room {
	if id < 0 || int(id) >= len(g.rooms) {
		return nil
	}
	return g.rooms[id]
}

// RoomOf returns the room owning the cell.
func (g *Grid) RoomOf(c *Cell) *Room {
	return g.Room(c.Room)
}

// CellAt returns the cell at a room position. Positions outside the room
// fail with ErrOutOfBounds; holes fail with ErrNoCell.
func (g *Grid) CellAt(room RoomID, x, y int) (*Cell, error) {
	r := g.Room(room)
	if r == nil {
		return nil, fmt.Errorf("%w: unknown room %d", simerr.ErrInvalidTopology, room)
	}
	if !r.InBounds(x, y) {
		return nil, fmt.Errorf("cell (%d,%d) in %s: %w", x, y, r, ErrOutOfBounds)
	}
	id, ok := r.cellID(x, y)
	if !ok {
		return nil, fmt.Errorf("cell (%d,%d) in %s: %w", x, y, r, ErrNoCell)
	}
	return g.cells[id], nil
}

// Cells returns every cell in ID order.
func (g *Grid) Cells() []*Cell {
	return g.cells
}

// Rooms returns every room in ID order.
func (g *Grid) Rooms() []*Room {
	return g.rooms
}

// Exits returns every exit cell in ID order.
func (g *Grid) Exits() []*Cell {
	out := make([]*Cell, 0, len(g.exits))
	for _, id := range g.exits {
		out = append(out, g.cells[id])
	}
	return out
}

// CellCount returns the number of cells in the grid.
func (g *Grid) CellCount() int {
	return len(g.cells)
}

// NeighborIn returns the same-room neighbor in direction d, or nil.
func (g *Grid) NeighborIn(c *Cell, d Direction8) *Cell {
	r := g.rooms[c.Room]
	dx, dy := d.Delta()
	x, y := c.X+dx, c.Y+dy
	if !r.InBounds(x, y) {
		return nil
	}
	id, ok := r.cellID(x, y)
	if !ok {
		return nil
	}
	return g.cells[id]
}

// Neighbors returns the same-room neighbors in clockwise direction order
// starting at Top, followed by linked door cells in link order.
func (g *Grid) Neighbors(c *Cell) []*Cell {
	out := make([]*Cell, 0, NumDirections)
	for _, d := range Directions {
		if n := g.NeighborIn(c, d); n != nil {
			out = append(out, n)
		}
	}
	for _, id := range g.links[c.ID] {
		out = append(out, g.cells[id])
	}
	return out
}

// FreeNeighbors returns the neighbors without an occupant.
func (g *Grid) FreeNeighbors(c *Cell) []*Cell {
	all := g.Neighbors(c)
	out := all[:0]
	for _, n := range all {
		if !n.IsOccupied() {
			out = append(out, n)
		}
	}
	return out
}

// AbsolutePosition returns the cell position in floor coordinates.
func (g *Grid) AbsolutePosition(c *Cell) (x, y int) {
	r := g.rooms[c.Room]
	return r.XOffset + c.X, r.YOffset + c.Y
}

// RelativeDirection returns the direction pointing from one cell to another.
func (g *Grid) RelativeDirection(from, to *Cell) (Direction8, error) {
	fx, fy := g.AbsolutePosition(from)
	tx, ty := g.AbsolutePosition(to)
	d, ok := DirectionOf(tx-fx, ty-fy)
	if !ok {
		return Top, fmt.Errorf("direction %s -> %s: %w", from, to, ErrNoDirection)
	}
	return d, nil
}

// IsDiagonalStep reports whether moving between the cells changes both axes.
func (g *Grid) IsDiagonalStep(from, to *Cell) bool {
	d, err := g.RelativeDirection(from, to)
	if err != nil {
		return false
	}
	return d.IsDiagonal()
}

// Place puts an individual onto an empty cell and lists it in the room.
func (g *Grid) Place(c *Cell, id int) error {
	if c.IsOccupied() {
		return fmt.Errorf("place individual %d on %s: %w", id, c, ErrOccupied)
	}
	c.occupant = id
	g.rooms[c.Room].occupants.Put(id)
	return nil
}

// Vacate removes the occupant from the cell and its room.
func (g *Grid) Vacate(c *Cell) {
	if !c.IsOccupied() {
		return
	}
	g.rooms[c.Room].occupants.Remove(c.occupant)
	c.occupant = Vacant
}

// Move transfers the occupant of from onto the empty cell to, updating the
// room occupant sets when the move crosses a door.
func (g *Grid) Move(from, to *Cell) error {
	id, ok := from.Occupant()
	if !ok {
		return fmt.Errorf("%w: move from empty %s", simerr.ErrStateViolation, from)
	}
	if from == to {
		return nil
	}
	if to.IsOccupied() {
		return fmt.Errorf("move individual %d to %s: %w", id, to, ErrOccupied)
	}
	g.Vacate(from)
	return g.Place(to, id)
}

// Validate checks that every cell is registered at its position in its own
// room and that room occupant sets agree with the cells.
func (g *Grid) Validate() error {
	occupied := make(map[RoomID]int, len(g.rooms))
	for _, c := range g.cells {
		r := g.Room(c.Room)
		if r == nil {
			return fmt.Errorf("%w: %s references unknown room", simerr.ErrInvalidTopology, c)
		}
		if !r.InBounds(c.X, c.Y) {
			return fmt.Errorf("validate %s: %w", c, ErrOutOfBounds)
		}
		if id, ok := r.cellID(c.X, c.Y); !ok || id != c.ID {
			return fmt.Errorf("%w: %s is claimed by another cell in %s", simerr.ErrInvalidTopology, c, r)
		}
		if occ, ok := c.Occupant(); ok {
			if !r.HasOccupant(occ) {
				return fmt.Errorf("%w: individual %d on %s is not listed in %s", simerr.ErrStateViolation, occ, c, r)
			}
			occupied[c.Room]++
		}
	}
	for _, r := range g.rooms {
		if r.OccupantCount() != occupied[r.ID] {
			return fmt.Errorf("%w: %s lists %d occupants but %d cells are occupied",
				simerr.ErrStateViolation, r, r.OccupantCount(), occupied[r.ID])
		}
	}
	return nil
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(rooms=%d, cells=%d, exits=%d)", len(g.rooms), len(g.cells), len(g.exits))
}
