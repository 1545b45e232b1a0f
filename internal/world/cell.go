package world

import "fmt"

// CellID addresses a cell in the grid arena.
type CellID int

// RoomID addresses a room in the grid arena.
type RoomID int

// Vacant is the occupant value of an empty cell.
const Vacant = -1

// CellKind tags what a cell is used for.
type CellKind uint8

const (
	KindRoom  CellKind = iota // Ordinary walkable floor
	KindExit                  // Leaving the building through this cell evacuates
	KindDoor                  // Connects to door cells of other rooms
	KindStair                 // Door-like link between floors, usually slower
	KindSafe                  // Safe area; no retreat from here into danger
)

var kindNames = [...]string{"room", "exit", "door", "stair", "safe"}

// String returns the kind name.
func (k CellKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Cell is a single grid location. It belongs to exactly one room for its
// lifetime and holds at most one occupant.
type Cell struct {
	ID   CellID
	Room RoomID
	X    int // Room-local column
	Y    int // Room-local row
	Kind CellKind

	// SpeedFactor scales the speed of individuals entering the cell.
	// 1.0 is unobstructed floor.
	SpeedFactor float64

	occupant int
}

// Occupant returns the ID of the individual on the cell.
func (c *Cell) Occupant() (int, bool) {
	if c.occupant == Vacant {
		return Vacant, false
	}
	return c.occupant, true
}

// IsOccupied reports whether an individual stands on the cell.
func (c *Cell) IsOccupied() bool {
	return c.occupant != Vacant
}

// IsSafe reports whether the cell counts as safe. Exits are safe.
func (c *Cell) IsSafe() bool {
	return c.Kind == KindSafe || c.Kind == KindExit
}

// IsExit reports whether stepping onto the cell evacuates an individual.
func (c *Cell) IsExit() bool {
	return c.Kind == KindExit
}

// IsDoor reports whether the cell can link to cells of other rooms.
func (c *Cell) IsDoor() bool {
	return c.Kind == KindDoor || c.Kind == KindStair
}

// String returns a compact description for logs.
func (c *Cell) String() string {
	return fmt.Sprintf("%s(%d@room%d:%d,%d)", c.Kind, c.ID, c.Room, c.X, c.Y)
}
