package neuron

import "fmt"

// LayerID is an index into the layer registry of the system that owns a layer.
// It is an identity, not a handle: holding a LayerID never keeps a layer alive.
type LayerID int

// NoLayer is the LayerID of a layer that has not been registered yet.
const NoLayer LayerID = -1

func (id LayerID) isValid() bool { return id >= 0 }

// Terminal is the grid position of a unit within its owning layer.
type Terminal struct {
	X, Y  int
	Layer LayerID
}

// Eq returns true if both terminals name the same position in the same layer.
func (t Terminal) Eq(other Terminal) bool {
	return t.X == other.X && t.Y == other.Y && t.Layer == other.Layer
}

// Less orders terminals lexicographically on (X, Y, Layer).
func (t Terminal) Less(other Terminal) bool {
	switch {
	case t.X != other.X:
		return t.X < other.X
	case t.Y != other.Y:
		return t.Y < other.Y
	}
	return t.Layer < other.Layer
}

func (t Terminal) Format(s fmt.State, c rune) {
	if t.Layer.isValid() {
		fmt.Fprintf(s, "(%d, %d)@L%d", t.X, t.Y, int(t.Layer))
		return
	}
	fmt.Fprintf(s, "(%d, %d)@-", t.X, t.Y)
}
