package neuron

import (
	"fmt"

	"github.com/chewxy/math32"
)

// FunctionKind tags the variant of a Function.
type FunctionKind uint8

const (
	ConstantKind FunctionKind = iota
	ReLUKind
	TanhKind
	MAXFUNCTIONKIND
)

func (k FunctionKind) String() string {
	switch k {
	case ConstantKind:
		return "Constant"
	case ReLUKind:
		return "ReLU"
	case TanhKind:
		return "Tanh"
	}
	return "UNKNOWN FUNCTION"
}

// Function is the activation policy of a unit. It is a small value type; the variant is
// selected by its kind rather than by an interface so that units copy it freely.
type Function struct {
	kind FunctionKind
	c    float32 // output of a Constant
}

// Constant returns a function that always outputs c. A bias unit uses Constant(1).
func Constant(c float32) Function { return Function{kind: ConstantKind, c: c} }

// ReLU returns the rectified-linear function.
func ReLU() Function { return Function{kind: ReLUKind} }

// Tanh returns the saturating hyperbolic tangent.
func Tanh() Function { return Function{kind: TanhKind} }

// Kind returns the variant tag.
func (f Function) Kind() FunctionKind { return f.kind }

// Forward applies the function.
func (f Function) Forward(x float32) float32 {
	switch f.kind {
	case ConstantKind:
		return f.c
	case ReLUKind:
		return math32.Max(x, 0)
	case TanhKind:
		return math32.Tanh(x)
	}
	panic("Unreachable")
}

// Change returns the derivative of Forward at x.
func (f Function) Change(x float32) float32 {
	switch f.kind {
	case ConstantKind:
		return 0
	case ReLUKind:
		if x > 0 {
			return 1
		}
		return 0
	case TanhKind:
		t := math32.Tanh(x)
		return 1 - t*t
	}
	panic("Unreachable")
}

// Min returns the lower saturation bound of the output.
//
// Unit inputs are clamped to [0, 1] before Forward, so ReLU never exceeds 1.
func (f Function) Min() float32 {
	switch f.kind {
	case ConstantKind:
		return f.c
	case ReLUKind:
		return 0
	case TanhKind:
		return -1
	}
	panic("Unreachable")
}

// Max returns the upper saturation bound of the output.
func (f Function) Max() float32 {
	switch f.kind {
	case ConstantKind:
		return f.c
	case ReLUKind, TanhKind:
		return 1
	}
	panic("Unreachable")
}

func (f Function) String() string {
	if f.kind == ConstantKind {
		return fmt.Sprintf("Constant(%v)", f.c)
	}
	return f.kind.String()
}
