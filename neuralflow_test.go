package neuralflow

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/awalterschulze/gographviz"
	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/gorgonia/neuralflow/cache"
	"github.com/gorgonia/neuralflow/filter"
	"github.com/gorgonia/neuralflow/neuron"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const difTol = 1e-4

func newTestSystem(t *testing.T, maxResident int, preview bool) *System {
	conf := DefaultConfig(t.TempDir())
	conf.MaxResident = maxResident
	conf.Workers = 2
	conf.Preview = preview
	s, err := New(conf)
	require.NoError(t, err)
	return s
}

func newTestConvolution(t *testing.T, s *System) *filter.Convolution {
	conv, err := filter.NewConvolution(5, 5, 3, 3, 2)
	require.NoError(t, err)
	require.NoError(t, s.Attach(conv))

	vals := make([]float32, 25)
	for i := range vals {
		vals[i] = float32(i%7) / 30
	}
	require.NoError(t, conv.Input().SetValues(vals))
	return conv
}

func isConfigurationError(err error) bool {
	var cerr *neuron.ConfigurationError
	return errors.As(err, &cerr)
}

func TestConfig(t *testing.T) {
	assert := assert.New(t)
	conf := DefaultConfig("dir")
	assert.True(conf.IsValid())

	bad := conf
	bad.CacheDir = ""
	assert.False(bad.IsValid())
	bad = conf
	bad.Workers = 0
	assert.False(bad.IsValid())
	bad = conf
	bad.PreviewSize = 2
	assert.False(bad.IsValid())
	bad.Preview = false
	assert.True(bad.IsValid())

	_, err := New(Config{})
	assert.Error(err)
}

func TestSystem_Add(t *testing.T) {
	assert := assert.New(t)
	s := newTestSystem(t, 2, false)
	a, b := neuron.NewLayer(1, 1), neuron.NewLayer(2, 1)
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))
	require.NoError(t, s.Add(a))

	assert.Equal(neuron.LayerID(0), a.ID())
	assert.Equal(neuron.LayerID(1), b.ID())
	assert.Equal(neuron.LayerID(1), b.Unit(1, 0).Terminal().Layer)
	assert.Len(s.Layers(), 2)
	assert.Same(b, s.Layer(1))
	assert.Nil(s.Layer(2))
	assert.Nil(s.Layer(neuron.NoLayer))

	other := newTestSystem(t, 2, false)
	assert.True(isConfigurationError(other.Add(a)), "a layer belongs to one system")
	assert.Error(s.Add(nil))
}

func TestSystem_BuildOrder(t *testing.T) {
	s := newTestSystem(t, 2, false)
	a, b, c, d := neuron.NewLayer(1, 1), neuron.NewLayer(1, 1), neuron.NewLayer(1, 1), neuron.NewLayer(1, 1)
	d.AddDependency(b)
	d.AddDependency(c)
	b.AddDependency(a)
	c.AddDependency(a)
	for _, l := range []*neuron.Layer{d, c, b, a} {
		require.NoError(t, s.Add(l))
	}

	order, err := s.Order()
	require.NoError(t, err)
	assert.Equal(t, []*neuron.Layer{a, c, b, d}, order)

	pos := make(map[*neuron.Layer]int)
	for i, l := range order {
		pos[l] = i
	}
	for _, l := range order {
		for _, dep := range l.Dependencies() {
			assert.True(t, pos[dep] < pos[l], "%v must come after %v", l, dep)
		}
	}

	assert.Equal(t, []*neuron.Layer{a}, s.Inputs())
	assert.Equal(t, []*neuron.Layer{d}, s.Outputs())
}

func TestSystem_BuildCycle(t *testing.T) {
	s := newTestSystem(t, 2, false)
	a, b, c := neuron.NewLayer(1, 1), neuron.NewLayer(1, 1), neuron.NewLayer(1, 1)
	b.AddDependency(a)
	a.AddDependency(c)
	c.AddDependency(b)
	for _, l := range []*neuron.Layer{a, b, c} {
		require.NoError(t, s.Add(l))
	}
	assert.True(t, isConfigurationError(s.Build()))
	assert.True(t, isConfigurationError(s.Forward()), "evaluation fails the same way")
}

func TestSystem_BuildAfterNewEdge(t *testing.T) {
	s := newTestSystem(t, 2, false)
	e, c, d := neuron.NewLayer(1, 1), neuron.NewLayer(1, 1), neuron.NewLayer(1, 1)
	for _, l := range []*neuron.Layer{e, c, d} {
		require.NoError(t, s.Add(l))
	}
	order, err := s.Order()
	require.NoError(t, err)
	assert.Equal(t, []*neuron.Layer{e, c, d}, order)

	d.AddDependency(e)
	c.AddDependency(d)
	require.NoError(t, s.Build())
	order, err = s.Order()
	require.NoError(t, err)
	assert.Equal(t, []*neuron.Layer{e, d, c}, order, "edges added after a build must be honoured")
	require.NoError(t, s.Forward())
}

func TestSystem_CycleAfterBuild(t *testing.T) {
	s := newTestSystem(t, 2, false)
	a, b := neuron.NewLayer(1, 1), neuron.NewLayer(1, 1)
	b.AddDependency(a)
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))
	require.NoError(t, s.Build())
	require.NoError(t, s.Forward())

	a.AddDependency(b)
	assert.True(t, isConfigurationError(s.Build()))
	assert.True(t, isConfigurationError(s.Forward()))
	assert.Error(t, s.Backward(), "the last forward pass ran on a stale order")
}

func TestSystem_BuildUnregistered(t *testing.T) {
	s := newTestSystem(t, 2, false)
	a, b := neuron.NewLayer(1, 1), neuron.NewLayer(1, 1)
	b.AddDependency(a)
	require.NoError(t, s.Add(b))
	assert.True(t, isConfigurationError(s.Build()))

	require.NoError(t, s.Add(a))
	assert.NoError(t, s.Build(), "adding the dependency fixes the topology")
}

func TestSystem_Forward(t *testing.T) {
	s := newTestSystem(t, 2, false)
	conv := newTestConvolution(t, s)
	require.NoError(t, s.Forward())

	in := conv.Input()
	for f, out := range conv.Outputs() {
		kernel := conv.Kernel(f)
		for y := 0; y < out.Height(); y++ {
			for x := 0; x < out.Width(); x++ {
				var sum float32
				for j := 0; j < 3; j++ {
					for i := 0; i < 3; i++ {
						sum += kernel[j*3+i].Weight() * in.Unit(x+i, y+j).Value()
					}
				}
				sum = math32.Min(math32.Max(sum, 0), 1)
				assert.InDelta(t, math32.Tanh(sum), out.Unit(x, y).Value(), difTol, "feature %d at (%d, %d)", f, x, y)
			}
		}
	}
	assert.Equal(t, float32(6)/30, in.Unit(1, 1).Value(), "source layers keep their values")
}

func TestSystem_Backward(t *testing.T) {
	s := newTestSystem(t, 2, false)
	conv := newTestConvolution(t, s)
	assert.Error(t, s.Backward(), "no forward pass yet")

	require.NoError(t, s.Forward())
	for _, out := range conv.Outputs() {
		errs := make([]float32, out.Len())
		for i := range errs {
			errs[i] = float32(i+1) / 10
		}
		require.NoError(t, out.InjectErrors(errs))
	}
	require.NoError(t, s.Backward())

	in := conv.Input()
	for f, out := range conv.Outputs() {
		kernel := conv.Kernel(f)
		for j := 0; j < 3; j++ {
			for i := 0; i < 3; i++ {
				var want float32
				for y := 0; y < out.Height(); y++ {
					for x := 0; x < out.Width(); x++ {
						want += out.Unit(x, y).Change() * in.Unit(x+i, y+j).Value()
					}
				}
				assert.InDelta(t, want, kernel[j*3+i].Gradient(), difTol, "feature %d cell (%d, %d)", f, i, j)
			}
		}
	}

	s.ZeroGradients()
	for _, g := range s.Weights().Gradients() {
		assert.Equal(t, float32(0), g)
	}
}

func TestSystem_DenseWithBias(t *testing.T) {
	s := newTestSystem(t, 2, false)
	conv := newTestConvolution(t, s)
	dense, err := filter.NewDense(conv.Outputs()[0], 2, 1, neuron.ReLU(), true)
	require.NoError(t, err)
	require.NoError(t, s.Attach(dense))

	require.NoError(t, s.Forward())
	assert.Equal(t, []float32{1}, dense.Bias().Values())
	assert.ElementsMatch(t, []*neuron.Layer{conv.Input(), dense.Bias()}, s.Inputs())
	assert.ElementsMatch(t, []*neuron.Layer{conv.Outputs()[1], dense.Output()}, s.Outputs())

	order, err := s.Order()
	require.NoError(t, err)
	assert.Same(t, dense.Output(), order[len(order)-1])
}

func TestSystem_CheckpointRestore(t *testing.T) {
	s := newTestSystem(t, 2, true)
	newTestConvolution(t, s)
	n := s.Weights().Len()

	frameWeights := func(frame int) []float32 {
		retVal := make([]float32, n)
		for i := range retVal {
			retVal[i] = float32(frame*n+i) / 100
		}
		return retVal
	}
	for frame := 0; frame < 5; frame++ {
		require.NoError(t, s.Weights().SetValues(frameWeights(frame)))
		require.NoError(t, s.Forward())
		require.NoError(t, s.Checkpoint(frame))
		assert.True(t, len(s.Checkpoints().Resident()) <= 2)
	}
	assert.FileExists(t, s.Checkpoints().Path(0), "early frames were spilled to disk")
	assert.FileExists(t, cache.PreviewPath(s.Checkpoints().Path(0)))

	for _, frame := range []int{0, 3, 1} {
		require.NoError(t, s.Restore(frame))
		if diff := cmp.Diff(frameWeights(frame), s.Weights().Values()); diff != "" {
			t.Errorf("restored weights of frame %d differ (-want +got):\n%s", frame, diff)
		}
		resident := s.Checkpoints().Resident()
		assert.True(t, len(resident) <= 2)
		assert.Contains(t, resident, frame, "a restored frame is resident")
	}

	assert.Error(t, s.Restore(42))
	assert.Len(t, s.Records, 5)
	assert.Equal(t, 4, s.Records[4].Frame)
}

func TestSystem_SaveLoad(t *testing.T) {
	s := newTestSystem(t, 2, false)
	newTestConvolution(t, s)
	want := s.Weights().Values()
	filename := filepath.Join(t.TempDir(), "weights.gob")
	require.NoError(t, s.Save(filename))

	require.NoError(t, s.Weights().SetValues(make([]float32, len(want))))
	require.NoError(t, s.Load(filename))
	assert.Equal(t, want, s.Weights().Values())

	small := newTestSystem(t, 2, false)
	assert.True(t, isConfigurationError(small.Load(filename)), "topologies must match")
}

func TestSystem_ToDot(t *testing.T) {
	s := newTestSystem(t, 2, false)
	newTestConvolution(t, s)
	dot, err := s.ToDot()
	require.NoError(t, err)

	g, err := gographviz.Read([]byte(dot))
	require.NoError(t, err)
	assert.Len(t, g.Nodes.Nodes, 3)
	assert.Contains(t, g.Edges.SrcToDsts["L0"], "L1")
	assert.Contains(t, g.Edges.SrcToDsts["L0"], "L2")
	assert.NotContains(t, g.Edges.SrcToDsts, "L1")
}

func TestStatistics_Dump(t *testing.T) {
	s := newTestSystem(t, 2, false)
	newTestConvolution(t, s)
	require.NoError(t, s.Forward())
	require.NoError(t, s.Checkpoint(0))
	require.NoError(t, s.Checkpoint(1))

	filename := filepath.Join(t.TempDir(), "stats.csv")
	require.NoError(t, s.Dump(filename))
	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"frame", "mean_output", "gradient_l1", "resident"}, records[0])
	assert.Equal(t, "1", records[2][0])
	assert.Equal(t, "2", records[2][3])
}

func TestSystem_Log(t *testing.T) {
	s := newTestSystem(t, 2, false)
	newTestConvolution(t, s)
	require.NoError(t, s.Forward())
	var buf bytes.Buffer
	s.Log(&buf)
	assert.Contains(t, buf.String(), "forward pass 1")
}
