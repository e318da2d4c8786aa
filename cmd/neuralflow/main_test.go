package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorgonia/neuralflow"
	"github.com/gorgonia/neuralflow/cache"
	"github.com/gorgonia/neuralflow/filter"
	"github.com/gorgonia/neuralflow/neuron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSGD(t *testing.T) {
	ws := neuron.NewWeights(2)
	a := neuron.NewConnection(ws, 1)
	b := neuron.NewConnection(ws, -1)
	a.Accumulate(2)
	b.Accumulate(-4)

	require.NoError(t, sgd(ws, 0.5))
	assert.Equal(t, []float32{0, 1}, ws.Values())
}

func TestDescribe(t *testing.T) {
	in, out := neuron.NewLayer(2, 2), neuron.NewLayer(1, 1)
	in.SetID(0)
	out.SetID(1)
	out.SetName("out")
	out.AddDependency(in)
	in.SetValues([]float32{0, 0.5, 1, 1})

	info := describe(3, 0.25, []*neuron.Layer{in, out})
	require.Len(t, info.Layers, 2)
	assert.Equal(t, []int{1}, info.Layers[0].Children)
	assert.Equal(t, []int{0}, info.Layers[1].Dependencies)
	assert.Equal(t, []uint8{0, 127, 255, 255}, info.Layers[0].Values)
	assert.Equal(t, "out", info.Layers[1].Name)

	again := describe(4, 0.1, []*neuron.Layer{in, out})
	assert.Same(t, info.Layers[0], again.Layers[0], "a layer keeps its region")
	assert.Equal(t, []int{1}, again.Layers[0].Children)
}

func TestStep(t *testing.T) {
	assert := assert.New(t)
	s, err := neuralflow.New(neuralflow.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	conv, err := filter.NewConvolution(4, 4, 3, 3, 1)
	require.NoError(t, err)
	require.NoError(t, s.Attach(conv))
	d, err := filter.NewDense(conv.Outputs()[0], 1, 1, neuron.Tanh(), true)
	require.NoError(t, err)
	require.NoError(t, s.Attach(d))

	input := make([]float32, 16)
	for i := range input {
		input[i] = float32(i) / 16
	}
	before := s.Weights().Values()
	// tanh never reaches 5, so the error is never zero
	loss, err := step(s, conv.Input(), []*filter.Dense{d}, input, 5, 0, 0.1)
	require.NoError(t, err)
	assert.True(loss > 0)

	require.Len(t, s.Records, 1)
	assert.True(s.Records[0].GradientL1 > 0, "the checkpoint sees the gradients of its frame")
	assert.NotEqual(before, s.Weights().Values(), "the weights were updated")
	for _, g := range s.Weights().Gradients() {
		assert.Equal(float32(0), g)
	}

	k, ok, err := s.Checkpoints().Knowledge(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(before, k.Values(), "the checkpoint holds the weights the frame was evaluated with")
}

func TestClearCheckpoints(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.New(cache.DefaultConfig(dir))
	require.NoError(t, err)

	// a non-empty directory standing in for a backing file cannot be removed
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "inner"), 0755))
	_, err = c.Set(0, cache.NewKnowledge(blocked, 0, []float32{1}))
	require.NoError(t, err)
	_, err = c.Set(1, cache.NewKnowledge("", 1, []float32{2}))
	require.NoError(t, err)

	var buf bytes.Buffer
	clearCheckpoints(c, log.New(&buf, "", 0))
	assert.Contains(t, buf.String(), "failed to clear checkpoints")
	assert.Equal(t, 0, c.Len())

	buf.Reset()
	clearCheckpoints(c, log.New(&buf, "", 0))
	assert.Empty(t, buf.String(), "an empty cache clears cleanly")
}
