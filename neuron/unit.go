package neuron

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Unit is a scalar computational node.
//
// A unit's value is only meaningful to downstream units after the unit has been
// evaluated (or set) in the current pass. Ordering is the caller's contract; debug
// builds (-tags debug) check it.
type Unit struct {
	fn Function

	value    float32
	input    float32 // clamped activation input from the last Evaluate
	change   float32 // error with respect to input, from the last Backpropagate
	injected float32 // error injected from outside, e.g. a loss on an output layer
	active   bool    // evaluated or set in the current pass

	pos     Terminal
	inputs  []*Connection
	outputs []*Connection
}

// NewUnit creates a free-standing unit with the given activation function.
func NewUnit(fn Function) *Unit {
	return &Unit{
		fn:  fn,
		pos: Terminal{Layer: NoLayer},
	}
}

// NewBias creates a bias unit: a unit whose output is always 1.
func NewBias() *Unit { return NewUnit(Constant(1)) }

// Evaluate computes the unit's value from the values of its sources.
//
// For every input connection the values of the sources mapped to this unit are summed
// and scaled by the connection's weight. The total is clamped to [0, 1] before it is
// passed through the activation function: a total of 5 and a total of 1 activate
// identically.
func (u *Unit) Evaluate() (float32, error) {
	var sum float32
	for _, c := range u.inputs {
		srcs, err := c.Get(u)
		if err != nil {
			return 0, err
		}
		var inner float32
		for _, src := range srcs {
			checkOrdering(u, src)
			inner += src.value
		}
		sum += c.Weight() * inner
	}
	u.input = clamp(sum, 0, 1)
	u.value = u.fn.Forward(u.input)
	u.active = true
	return u.value, nil
}

// Backpropagate computes the unit's error from the errors of its destinations and
// accumulates the gradient of every input connection.
//
// Destinations must have been backpropagated already. Because a connection may be
// shared, its gradient is the sum of the contributions of every unit that uses it;
// callers zero the accumulators between passes.
func (u *Unit) Backpropagate() (float32, error) {
	downstream := u.injected
	for _, c := range u.outputs {
		dsts, err := c.GetBackward(u)
		if err != nil {
			return 0, err
		}
		var inner float32
		for _, dst := range dsts {
			inner += dst.change
		}
		downstream += c.Weight() * inner
	}
	u.change = downstream * u.fn.Change(u.input)

	for _, c := range u.inputs {
		srcs, err := c.Get(u)
		if err != nil {
			return 0, err
		}
		var inner float32
		for _, src := range srcs {
			inner += src.value
		}
		c.Accumulate(u.change * inner)
	}
	return u.change, nil
}

// InjectError adds an external error signal (the derivative of a loss with respect to
// this unit's value). It is consumed by the next Backpropagate.
func (u *Unit) InjectError(e float32) { u.injected += e }

// Reset prepares the unit for a new pass. The value is kept so that input units keep
// what was set on them.
func (u *Unit) Reset() {
	u.active = false
	u.change = 0
	u.injected = 0
}

// SetValue sets the value directly and marks the unit as evaluated. Used for input units.
func (u *Unit) SetValue(v float32) {
	u.value = v
	u.active = true
}

func (u *Unit) Value() float32                  { return u.value }
func (u *Unit) Input() float32                  { return u.input }
func (u *Unit) Change() float32                 { return u.change }
func (u *Unit) Active() bool                    { return u.active }
func (u *Unit) Terminal() Terminal              { return u.pos }
func (u *Unit) Function() Function              { return u.fn }
func (u *Unit) SetFunction(fn Function)         { u.fn = fn }
func (u *Unit) Inputs() []*Connection           { return u.inputs }
func (u *Unit) Outputs() []*Connection          { return u.outputs }
func (u *Unit) InputWeightSize() int            { return len(u.inputs) }
func (u *Unit) OutputWeightSize() int           { return len(u.outputs) }
func (u *Unit) InputWeight(i int) float32       { return u.inputs[i].Weight() }
func (u *Unit) OutputWeight(i int) float32      { return u.outputs[i].Weight() }
func (u *Unit) Forward(x float32) float32       { return u.fn.Forward(x) }
func (u *Unit) ForwardChange(x float32) float32 { return u.fn.Change(x) }

// NormalizedValue maps the value into [0, 1] using the activation function's range.
func (u *Unit) NormalizedValue() float32 {
	lo, hi := u.fn.Min(), u.fn.Max()
	return clamp((u.value-lo)/math32.Max(1e-10, hi-lo), 0, 1)
}

// InputUnits lists every source unit feeding this unit, connection by connection.
func (u *Unit) InputUnits() ([]*Unit, error) {
	var retVal []*Unit
	for _, c := range u.inputs {
		srcs, err := c.Get(u)
		if err != nil {
			return nil, err
		}
		retVal = append(retVal, srcs...)
	}
	return retVal, nil
}

// OutputUnits lists every destination unit this unit feeds, connection by connection.
func (u *Unit) OutputUnits() ([]*Unit, error) {
	var retVal []*Unit
	for _, c := range u.outputs {
		dsts, err := c.GetBackward(u)
		if err != nil {
			return nil, err
		}
		retVal = append(retVal, dsts...)
	}
	return retVal, nil
}

// InputUnitSize counts the source units feeding this unit.
func (u *Unit) InputUnitSize() (retVal int, err error) {
	for _, c := range u.inputs {
		var n int
		if n, err = c.Size(u); err != nil {
			return 0, err
		}
		retVal += n
	}
	return retVal, nil
}

func (u *Unit) Format(s fmt.State, c rune) {
	fmt.Fprintf(s, "{Unit %v: %v value %v, change %v, inputs %d, outputs %d}", u.pos, u.fn, u.value, u.change, len(u.inputs), len(u.outputs))
}

func clamp(x, lo, hi float32) float32 {
	return math32.Min(math32.Max(x, lo), hi)
}
