package filter

import (
	"fmt"

	"github.com/gorgonia/neuralflow/neuron"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// wirer carries the first error of a sequence of builder steps. Every step after a
// failure is a no-op.
type wirer struct {
	err error
}

func (m *wirer) do(f func() error) {
	if m.err != nil {
		return
	}
	if m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
}

// layer creates a layer and registers it with g.
func (m *wirer) layer(g Graph, width, height int, fn neuron.Function, name string) (retVal *neuron.Layer) {
	if m.err != nil {
		return nil
	}
	retVal = neuron.NewLayer(width, height)
	retVal.SetFunction(fn)
	retVal.SetName(name)
	if m.err = g.Add(retVal); m.err != nil {
		m.err = errors.Wrapf(m.err, "failed to add %v", retVal)
		return nil
	}
	return
}

// connections allocates n connections from ws with weights drawn uniformly from [low, high).
func (m *wirer) connections(ws *neuron.Weights, n int, low, high float64) (retVal []*neuron.Connection) {
	if m.err != nil {
		return nil
	}
	if n <= 0 {
		return nil
	}
	initial, ok := G.Uniform(low, high)(tensor.Float32, n).([]float32)
	if !ok {
		m.err = errors.Errorf("expected []float32 initial weights")
		return nil
	}
	retVal = make([]*neuron.Connection, n)
	for i, w := range initial {
		retVal[i] = neuron.NewConnection(ws, w)
	}
	return
}

func configurationf(format string, args ...interface{}) error {
	return errors.WithStack(neuron.Configurationf(format, args...))
}

func featureName(base string, f int) string { return fmt.Sprintf("%s.f%d", base, f) }
