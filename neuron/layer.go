package neuron

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Region is the opaque handle a display collaborator attaches to a layer.
// The layer stores it but never looks inside.
type Region interface{}

// Layer is a width × height grid of units that share one activation function.
//
// A layer records the layers feeding it (dependencies) and the layers it feeds
// (children). Units inside one layer never feed each other, so they may be evaluated
// in any order.
type Layer struct {
	id     LayerID
	name   string
	width  int
	height int
	fn     Function

	// units is a flat, row-major list. It is allocated once so that unit addresses stay
	// stable; connections key on them.
	units []Unit

	dependencies []*Layer
	children     []*Layer
	version      uint64 // bumped whenever an edge touching this layer is added

	regionOnce sync.Once
	region     Region
}

// NewLayer creates a layer of ReLU units.
func NewLayer(width, height int) *Layer {
	l := &Layer{
		id:     NoLayer,
		width:  width,
		height: height,
		fn:     ReLU(),
		units:  make([]Unit, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			u := &l.units[y*width+x]
			u.fn = l.fn
			u.pos = Terminal{X: x, Y: y, Layer: NoLayer}
		}
	}
	return l
}

func (l *Layer) ID() LayerID         { return l.id }
func (l *Layer) Name() string        { return l.name }
func (l *Layer) SetName(name string) { l.name = name }
func (l *Layer) Width() int          { return l.width }
func (l *Layer) Height() int         { return l.height }
func (l *Layer) Len() int            { return len(l.units) }
func (l *Layer) Function() Function  { return l.fn }

// Aspect returns width / height.
func (l *Layer) Aspect() float32 { return float32(l.width) / float32(l.height) }

// SetID records the index the layer was registered under. Every unit's terminal
// follows it.
func (l *Layer) SetID(id LayerID) {
	l.id = id
	for i := range l.units {
		l.units[i].pos.Layer = id
	}
}

// SetFunction assigns fn to the layer and to every unit in it.
func (l *Layer) SetFunction(fn Function) {
	l.fn = fn
	for i := range l.units {
		l.units[i].fn = fn
	}
}

// Unit returns the unit at (x, y).
func (l *Layer) Unit(x, y int) *Unit { return &l.units[y*l.width+x] }

// Units returns every unit in row-major order.
func (l *Layer) Units() []*Unit {
	retVal := make([]*Unit, len(l.units))
	for i := range l.units {
		retVal[i] = &l.units[i]
	}
	return retVal
}

// AddDependency records that dep feeds this layer, and that this layer is a child of dep.
func (l *Layer) AddDependency(dep *Layer) {
	for _, d := range l.dependencies {
		if d == dep {
			return
		}
	}
	l.dependencies = append(l.dependencies, dep)
	dep.children = append(dep.children, l)
	l.version++
	dep.version++
}

// Version changes every time a dependency or child is added to the layer. Orderings
// computed from an older version are stale.
func (l *Layer) Version() uint64 { return l.version }

// Dependencies returns the layers that feed this layer.
func (l *Layer) Dependencies() []*Layer { return l.dependencies }

// Children returns the layers this layer feeds.
func (l *Layer) Children() []*Layer { return l.children }

// Region returns the display region of the layer, creating it with create on the
// first request.
func (l *Layer) Region(create func(*Layer) Region) Region {
	l.regionOnce.Do(func() { l.region = create(l) })
	return l.region
}

// HasRegion returns true once a region has been created.
func (l *Layer) HasRegion() bool { return l.region != nil }

// SetValues sets the value of every unit, row-major. Used for input layers.
func (l *Layer) SetValues(values []float32) error {
	if len(values) != len(l.units) {
		return errors.WithStack(Configurationf("layer %v has %d units, got %d values", l, len(l.units), len(values)))
	}
	for i, v := range values {
		l.units[i].SetValue(v)
	}
	return nil
}

// Values returns the value of every unit, row-major.
func (l *Layer) Values() []float32 {
	retVal := make([]float32, len(l.units))
	for i := range l.units {
		retVal[i] = l.units[i].value
	}
	return retVal
}

// InjectErrors adds an external error to every unit, row-major.
func (l *Layer) InjectErrors(errs []float32) error {
	if len(errs) != len(l.units) {
		return errors.WithStack(Configurationf("layer %v has %d units, got %d errors", l, len(l.units), len(errs)))
	}
	for i, e := range errs {
		l.units[i].InjectError(e)
	}
	return nil
}

// MarkActive marks every unit as evaluated for this pass without changing its value.
func (l *Layer) MarkActive() {
	for i := range l.units {
		l.units[i].active = true
	}
}

// Reset resets every unit for a new pass.
func (l *Layer) Reset() {
	for i := range l.units {
		l.units[i].Reset()
	}
}

// Evaluate evaluates every unit.
func (l *Layer) Evaluate() error {
	for i := range l.units {
		if _, err := l.units[i].Evaluate(); err != nil {
			return err
		}
	}
	return nil
}

// EvaluateParallel evaluates the units in up to workers goroutines. Units only read
// units of other layers, so no synchronisation between them is required.
func (l *Layer) EvaluateParallel(workers int) error {
	if workers <= 1 || len(l.units) < 2*workers {
		return l.Evaluate()
	}
	chunk := (len(l.units) + workers - 1) / workers

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(l.units) {
			end = len(l.units)
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if _, err := l.units[i].Evaluate(); err != nil {
					errs[w] = err
					return
				}
			}
		}(w, start, end)
	}
	wg.Wait()

	var allErrs manyErr
	for _, err := range errs {
		if err != nil {
			allErrs = append(allErrs, err)
		}
	}
	if len(allErrs) > 0 {
		return allErrs
	}
	return nil
}

// Backpropagate backpropagates every unit. It is sequential: units of one layer share
// gradient accumulators.
func (l *Layer) Backpropagate() error {
	for i := range l.units {
		if _, err := l.units[i].Backpropagate(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Layer) Format(s fmt.State, c rune) {
	name := l.name
	if name == "" {
		name = "Layer"
	}
	if l.id.isValid() {
		fmt.Fprintf(s, "%s#%d(%dx%d)", name, int(l.id), l.width, l.height)
		return
	}
	fmt.Fprintf(s, "%s(%dx%d)", name, l.width, l.height)
}
