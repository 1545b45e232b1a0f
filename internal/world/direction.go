// Package world provides the discretized floor plan: rooms, cells, and the
// eight-direction neighborhood between them. Rooms and cells live in an
// arena addressed by stable IDs; cells refer to their room and occupant by ID.
package world

// Direction8 is one of the eight compass directions on the cell grid.
// Values run clockwise starting at Top, so rotation is modular arithmetic.
type Direction8 uint8

const (
	Top Direction8 = iota
	TopRight
	Right
	DownRight
	Down
	DownLeft
	Left
	TopLeft
)

// NumDirections is the size of the neighborhood.
const NumDirections = 8

// Directions lists all directions in clockwise order starting at Top.
var Directions = [NumDirections]Direction8{Top, TopRight, Right, DownRight, Down, DownLeft, Left, TopLeft}

// directionDeltas holds the (x, y) offsets per direction; y grows downwards.
var directionDeltas = [NumDirections][2]int{
	{0, -1},
	{1, -1},
	{1, 0},
	{1, 1},
	{0, 1},
	{-1, 1},
	{-1, 0},
	{-1, -1},
}

var directionNames = [NumDirections]string{
	"Top", "TopRight", "Right", "DownRight", "Down", "DownLeft", "Left", "TopLeft",
}

// String returns the direction name.
func (d Direction8) String() string {
	if !d.IsValid() {
		return "Unknown"
	}
	return directionNames[d]
}

// IsValid reports whether d is one of the eight directions.
func (d Direction8) IsValid() bool {
	return d < NumDirections
}

// Delta returns the x and y offsets of a step in this direction.
func (d Direction8) Delta() (dx, dy int) {
	if !d.IsValid() {
		return 0, 0
	}
	return directionDeltas[d][0], directionDeltas[d][1]
}

// Clockwise returns the direction one step clockwise.
func (d Direction8) Clockwise() Direction8 {
	return (d + 1) % NumDirections
}

// CounterClockwise returns the direction one step counter-clockwise.
func (d Direction8) CounterClockwise() Direction8 {
	return (d + NumDirections - 1) % NumDirections
}

// Opposite returns the direction rotated by 180 degrees.
func (d Direction8) Opposite() Direction8 {
	return (d + NumDirections/2) % NumDirections
}

// IsDiagonal reports whether a step in this direction changes both axes.
func (d Direction8) IsDiagonal() bool {
	return d%2 == 1
}

// Rotation returns the number of rotational steps (0–4) between a and b,
// whichever way round is shorter.
func Rotation(a, b Direction8) int {
	diff := int(a) - int(b)
	if diff < 0 {
		diff = -diff
	}
	if diff > NumDirections/2 {
		diff = NumDirections - diff
	}
	return diff
}

// DirectionOf returns the direction whose delta has the signs of (dx, dy).
// The second result is false for a zero delta.
func DirectionOf(dx, dy int) (Direction8, bool) {
	sx, sy := sign(dx), sign(dy)
	if sx == 0 && sy == 0 {
		return Top, false
	}
	for i, delta := range directionDeltas {
		if delta[0] == sx && delta[1] == sy {
			return Direction8(i), true
		}
	}
	return Top, false
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
