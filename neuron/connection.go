package neuron

import (
	"fmt"

	"github.com/pkg/errors"
)

// Connection is a weighted edge that may be shared by many unit pairs.
//
// A single Connection carries one weight and one gradient accumulator. Every
// (src, dst) pair registered with Add uses that same weight, which is how weight
// tying (e.g. a convolution kernel cell) is represented.
type Connection struct {
	id    int64
	store *Weights
	slot  slot

	forward  map[*Unit][]*Unit // destination -> sources
	backward map[*Unit][]*Unit // source -> destinations
}

// NewConnection allocates a weight slot initialised to w in store and returns a
// connection that uses it.
func NewConnection(store *Weights, w float32) *Connection {
	return &Connection{
		id:       ConnectionIDs.Next(),
		store:    store,
		slot:     store.alloc(w),
		forward:  make(map[*Unit][]*Unit),
		backward: make(map[*Unit][]*Unit),
	}
}

// ID returns the process-wide id assigned at construction.
func (c *Connection) ID() int64 { return c.id }

// Weight returns the shared weight.
func (c *Connection) Weight() float32 { return c.store.value(c.slot) }

// SetWeight sets the shared weight.
func (c *Connection) SetWeight(w float32) { c.store.setValue(c.slot, w) }

// Gradient returns the gradient accumulated across every pair using this connection.
func (c *Connection) Gradient() float32 { return c.store.grad(c.slot) }

// Accumulate adds d to the gradient accumulator.
func (c *Connection) Accumulate(d float32) { c.store.accumulate(c.slot, d) }

// Add registers one more (src, dst) pair. Existing pairs are never removed.
func (c *Connection) Add(src, dst *Unit) {
	c.forward[dst] = append(c.forward[dst], src)
	c.backward[src] = append(c.backward[src], dst)
}

// Get returns the sources mapped to dst through this connection.
func (c *Connection) Get(dst *Unit) ([]*Unit, error) {
	srcs, ok := c.forward[dst]
	if !ok {
		return nil, errors.WithStack(&LookupError{Connection: c.id, Unit: dst.pos})
	}
	return srcs, nil
}

// GetBackward returns the destinations mapped to src through this connection.
func (c *Connection) GetBackward(src *Unit) ([]*Unit, error) {
	dsts, ok := c.backward[src]
	if !ok {
		return nil, errors.WithStack(&LookupError{Connection: c.id, Unit: src.pos})
	}
	return dsts, nil
}

// Size returns the number of sources mapped to dst through this connection.
func (c *Connection) Size(dst *Unit) (int, error) {
	srcs, err := c.Get(dst)
	if err != nil {
		return 0, err
	}
	return len(srcs), nil
}

// Pairs returns the number of (src, dst) pairs sharing this connection.
func (c *Connection) Pairs() (retVal int) {
	for _, srcs := range c.forward {
		retVal += len(srcs)
	}
	return
}

func (c *Connection) Format(s fmt.State, r rune) {
	fmt.Fprintf(s, "{Connection %d: weight %v, gradient %v, pairs %d}", c.id, c.Weight(), c.Gradient(), c.Pairs())
}

// Connect wires src to dst through c: c becomes an output of src and an input of dst.
//
// A unit lists a shared connection once even if it takes part in several pairs of it.
func Connect(src *Unit, c *Connection, dst *Unit) {
	if _, ok := c.backward[src]; !ok {
		src.outputs = append(src.outputs, c)
	}
	if _, ok := c.forward[dst]; !ok {
		dst.inputs = append(dst.inputs, c)
	}
	c.Add(src, dst)
}
