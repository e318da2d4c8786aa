package filter

import (
	"github.com/gorgonia/neuralflow/neuron"
)

// Convolution wires an input layer to one Tanh output layer per feature.
//
// Each feature owns a kx × ky kernel of connections. Output unit (x, y) reads input
// unit (x+i, y+j) through kernel cell (i, j), and the same kernel cell is shared by
// every output position, so the input layer shrinks by kx-1 columns and ky-1 rows.
type Convolution struct {
	name     string
	input    *neuron.Layer
	kx, ky   int
	features int

	outputs []*neuron.Layer
	kernels [][]*neuron.Connection // per feature, row-major ky rows of kx cells
}

// NewConvolution creates a convolution over a new width × height input layer.
func NewConvolution(width, height, kx, ky, features int) (*Convolution, error) {
	if width < 1 || height < 1 {
		return nil, configurationf("input of %d × %d units", width, height)
	}
	input := neuron.NewLayer(width, height)
	input.SetName("input")
	return NewConvolutionFrom(input, kx, ky, features)
}

// NewConvolutionFrom creates a convolution reading from an existing layer.
// The kernel dimensions must be odd.
func NewConvolutionFrom(input *neuron.Layer, kx, ky, features int) (*Convolution, error) {
	switch {
	case input == nil:
		return nil, configurationf("convolution requires an input layer")
	case kx < 1 || ky < 1:
		return nil, configurationf("kernel of %d × %d", kx, ky)
	case kx%2 == 0 || ky%2 == 0:
		return nil, configurationf("kernel size must be odd, got %d × %d", kx, ky)
	case features < 1:
		return nil, configurationf("convolution requires at least one feature, got %d", features)
	}
	return &Convolution{
		name:     "conv",
		input:    input,
		kx:       kx,
		ky:       ky,
		features: features,
	}, nil
}

// SetName sets the prefix of the output layer names.
func (c *Convolution) SetName(name string) { c.name = name }

// Input returns the layer the convolution reads from.
func (c *Convolution) Input() *neuron.Layer { return c.input }

// Outputs returns one layer per feature. It is empty until Attach succeeds.
func (c *Convolution) Outputs() []*neuron.Layer { return c.outputs }

// Kernel returns the connections of feature f, row-major.
func (c *Convolution) Kernel(f int) []*neuron.Connection { return c.kernels[f] }

// KernelSize returns the kernel dimensions.
func (c *Convolution) KernelSize() (kx, ky int) { return c.kx, c.ky }

// Attach registers the input layer and creates and wires the feature layers.
func (c *Convolution) Attach(g Graph) error {
	if c.outputs != nil {
		return configurationf("convolution %q is already attached", c.name)
	}
	ow := c.input.Width() - 2*(c.kx/2)
	oh := c.input.Height() - 2*(c.ky/2)
	if ow <= 0 || oh <= 0 {
		return configurationf("kernel %d × %d does not fit in %v", c.kx, c.ky, c.input)
	}

	m := new(wirer)
	m.do(func() error { return g.Add(c.input) })

	outputs := make([]*neuron.Layer, 0, c.features)
	kernels := make([][]*neuron.Connection, 0, c.features)
	for f := 0; f < c.features; f++ {
		out := m.layer(g, ow, oh, neuron.Tanh(), featureName(c.name, f))
		kernel := m.connections(g.Weights(), c.kx*c.ky, 0, 1)
		m.do(func() error {
			out.AddDependency(c.input)
			c.wire(out, kernel)
			return nil
		})
		outputs = append(outputs, out)
		kernels = append(kernels, kernel)
	}
	if m.err != nil {
		return m.err
	}
	c.outputs = outputs
	c.kernels = kernels
	return nil
}

func (c *Convolution) wire(out *neuron.Layer, kernel []*neuron.Connection) {
	for y := 0; y < out.Height(); y++ {
		for x := 0; x < out.Width(); x++ {
			dst := out.Unit(x, y)
			for j := 0; j < c.ky; j++ {
				for i := 0; i < c.kx; i++ {
					neuron.Connect(c.input.Unit(x+i, y+j), kernel[j*c.kx+i], dst)
				}
			}
		}
	}
}
