package filter

import (
	"github.com/chewxy/math32"
	"github.com/gorgonia/neuralflow/neuron"
)

// Dense fully connects an input layer to a new output layer, one connection per unit
// pair. With a bias, a 1 × 1 layer holding a constant 1 feeds every output unit as well.
type Dense struct {
	name          string
	input         *neuron.Layer
	width, height int
	fn            neuron.Function
	bias          bool

	output    *neuron.Layer
	biasLayer *neuron.Layer
}

// NewDense creates a fully connected filter from input to a width × height layer of fn.
func NewDense(input *neuron.Layer, width, height int, fn neuron.Function, bias bool) (*Dense, error) {
	switch {
	case input == nil:
		return nil, configurationf("dense requires an input layer")
	case width < 1 || height < 1:
		return nil, configurationf("output of %d × %d units", width, height)
	}
	return &Dense{
		name:   "dense",
		input:  input,
		width:  width,
		height: height,
		fn:     fn,
		bias:   bias,
	}, nil
}

func (d *Dense) SetName(name string)   { d.name = name }
func (d *Dense) Input() *neuron.Layer  { return d.input }
func (d *Dense) Output() *neuron.Layer { return d.output }
func (d *Dense) Bias() *neuron.Layer   { return d.biasLayer }

// Attach registers the layers and wires them. Weights are drawn uniformly from
// [-r, r) where r = 1/√fan-in.
func (d *Dense) Attach(g Graph) error {
	if d.output != nil {
		return configurationf("dense %q is already attached", d.name)
	}
	fanIn := d.input.Len()
	if d.bias {
		fanIn++
	}
	r := float64(1 / math32.Sqrt(float32(fanIn)))

	m := new(wirer)
	m.do(func() error { return g.Add(d.input) })
	var bias *neuron.Layer
	if d.bias {
		bias = m.layer(g, 1, 1, neuron.Constant(1), d.name+".bias")
		m.do(func() error { return bias.SetValues([]float32{1}) })
	}
	out := m.layer(g, d.width, d.height, d.fn, d.name)
	conns := m.connections(g.Weights(), fanIn*d.width*d.height, -r, r)
	if m.err != nil {
		return m.err
	}

	out.AddDependency(d.input)
	if bias != nil {
		out.AddDependency(bias)
	}
	srcs := d.input.Units()
	if bias != nil {
		srcs = append(srcs, bias.Unit(0, 0))
	}
	for i, dst := range out.Units() {
		for j, src := range srcs {
			neuron.Connect(src, conns[i*fanIn+j], dst)
		}
	}
	d.output = out
	d.biasLayer = bias
	return nil
}
