package world

import (
	"fmt"

	"github.com/zyedidia/generic/mapset"
)

// Room is a rectangular block of cells on one floor. Positions without a
// cell are holes (walls, pillars).
type Room struct {
	ID      RoomID
	Name    string
	Floor   int
	Width   int
	Height  int
	XOffset int // Position of the room's origin in floor coordinates
	YOffset int

	// Alarmed is set once the room has been alerted.
	Alarmed bool

	cells     []CellID // Width*Height, column-major; -1 marks a hole
	occupants mapset.Set[int]
}

func newRoom(id RoomID, name string, width, height, floor, xOff, yOff int) *Room {
	r := &Room{
		ID:        id,
		Name:      name,
		Floor:     floor,
		Width:     width,
		Height:    height,
		XOffset:   xOff,
		YOffset:   yOff,
		cells:     make([]CellID, width*height),
		occupants: mapset.New[int](),
	}
	for i := range r.cells {
		r.cells[i] = -1
	}
	return r
}

// InBounds reports whether (x, y) lies inside the room rectangle.
func (r *Room) InBounds(x, y int) bool {
	return x >= 0 && x < r.Width && y >= 0 && y < r.Height
}

func (r *Room) index(x, y int) int {
	return x*r.Height + y
}

func (r *Room) cellID(x, y int) (CellID, bool) {
	id := r.cells[r.index(x, y)]
	return id, id >= 0
}

// HasOccupant reports whether the individual is listed in the room.
func (r *Room) HasOccupant(id int) bool {
	return r.occupants.Has(id)
}

// OccupantCount returns the number of individuals inside the room.
func (r *Room) OccupantCount() int {
	return r.occupants.Size()
}

// String returns a compact description for logs.
func (r *Room) String() string {
	return fmt.Sprintf("Room(id=%d, name=%q, %dx%d, floor=%d)", r.ID, r.Name, r.Width, r.Height, r.Floor)
}
