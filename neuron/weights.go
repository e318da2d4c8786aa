package neuron

import (
	"sync"

	"github.com/pkg/errors"
)

// slot is essentially a pointer into a Weights store.
type slot int

// Weights owns the weight values and gradient accumulators of every Connection
// allocated from it. A Connection only holds a slot into the store.
//
// The optimizer (not part of this package) reads Gradients and writes SetValues.
type Weights struct {
	sync.RWMutex
	values []float32
	grads  []float32
}

// NewWeights creates an empty store with room for n weights.
func NewWeights(n int) *Weights {
	return &Weights{
		values: make([]float32, 0, n),
		grads:  make([]float32, 0, n),
	}
}

// alloc reserves a new slot holding w.
func (ws *Weights) alloc(w float32) slot {
	ws.Lock()
	ws.values = append(ws.values, w)
	ws.grads = append(ws.grads, 0)
	s := slot(len(ws.values) - 1)
	ws.Unlock()
	return s
}

func (ws *Weights) value(s slot) float32 {
	ws.RLock()
	v := ws.values[s]
	ws.RUnlock()
	return v
}

func (ws *Weights) setValue(s slot, v float32) {
	ws.Lock()
	ws.values[s] = v
	ws.Unlock()
}

func (ws *Weights) grad(s slot) float32 {
	ws.RLock()
	g := ws.grads[s]
	ws.RUnlock()
	return g
}

func (ws *Weights) accumulate(s slot, d float32) {
	ws.Lock()
	ws.grads[s] += d
	ws.Unlock()
}

// Len returns the number of allocated weights.
func (ws *Weights) Len() int {
	ws.RLock()
	defer ws.RUnlock()
	return len(ws.values)
}

// Values returns a copy of the weight values, in allocation order.
func (ws *Weights) Values() []float32 {
	ws.RLock()
	retVal := make([]float32, len(ws.values))
	copy(retVal, ws.values)
	ws.RUnlock()
	return retVal
}

// Gradients returns a copy of the accumulated gradients, in allocation order.
func (ws *Weights) Gradients() []float32 {
	ws.RLock()
	retVal := make([]float32, len(ws.grads))
	copy(retVal, ws.grads)
	ws.RUnlock()
	return retVal
}

// SetValues overwrites every weight value. The length must match Len.
func (ws *Weights) SetValues(values []float32) error {
	ws.Lock()
	defer ws.Unlock()
	if len(values) != len(ws.values) {
		return errors.WithStack(Configurationf("expected %d weights, got %d", len(ws.values), len(values)))
	}
	copy(ws.values, values)
	return nil
}

// ZeroGradients clears every gradient accumulator.
func (ws *Weights) ZeroGradients() {
	ws.Lock()
	for i := range ws.grads {
		ws.grads[i] = 0
	}
	ws.Unlock()
}
