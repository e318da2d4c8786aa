package neuralflow

import (
	"bytes"
	"fmt"

	"github.com/gorgonia/neuralflow/neuron"
	"github.com/pkg/errors"
)

// Build orders the layers so that every layer comes after the layers it depends on.
// Among layers that are ready at the same time, the one registered first comes first.
//
// A cycle, or a dependency on a layer that is not registered, is a configuration
// error. Forward and Backward build implicitly when layers or edges were added.
func (s *System) Build() error {
	s.Lock()
	defer s.Unlock()
	return s.build()
}

// topology sums the versions of every layer. Versions only grow, so any new edge
// changes the sum.
func (s *System) topology() (retVal uint64) {
	for _, l := range s.layers {
		retVal += l.Version()
	}
	return
}

func (s *System) build() error {
	version := s.topology()
	if !s.dirty && s.order != nil && version == s.built {
		return nil
	}
	s.order = nil
	s.evaluated = false
	indegree := make([]int, len(s.layers))
	for i, l := range s.layers {
		for _, dep := range l.Dependencies() {
			if !s.owns(dep) {
				return errors.WithStack(neuron.Configurationf("%v depends on %v, which is not registered", l, dep))
			}
		}
		indegree[i] = len(l.Dependencies())
	}

	order := make([]*neuron.Layer, 0, len(s.layers))
	emitted := make([]bool, len(s.layers))
	for len(order) < len(s.layers) {
		next := -1
		for i := range s.layers {
			if !emitted[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var buf bytes.Buffer
			for i, l := range s.layers {
				if !emitted[i] {
					fmt.Fprintf(&buf, " %v", l)
				}
			}
			return errors.WithStack(neuron.Configurationf("cycle among layers%s", buf.String()))
		}
		emitted[next] = true
		l := s.layers[next]
		order = append(order, l)
		for _, c := range l.Children() {
			if s.owns(c) {
				indegree[c.ID()]--
			}
		}
	}
	s.order = order
	s.dirty = false
	s.built = version
	s.logger.Printf("build: %v", order)
	return nil
}

// Order returns the layers in evaluation order.
func (s *System) Order() ([]*neuron.Layer, error) {
	s.Lock()
	defer s.Unlock()
	if err := s.build(); err != nil {
		return nil, err
	}
	retVal := make([]*neuron.Layer, len(s.order))
	copy(retVal, s.order)
	return retVal, nil
}

// Forward evaluates every layer in order.
//
// Layers without dependencies are sources: their values are whatever the caller set
// with SetValues, and they are not evaluated. Errors injected before Forward are
// discarded; inject them between Forward and Backward.
func (s *System) Forward() error {
	s.Lock()
	defer s.Unlock()
	if err := s.build(); err != nil {
		return err
	}
	for _, l := range s.layers {
		l.Reset()
	}
	for _, l := range s.order {
		if len(l.Dependencies()) == 0 {
			l.MarkActive()
			continue
		}
		if err := l.EvaluateParallel(s.conf.Workers); err != nil {
			s.evaluated = false
			return errors.Wrapf(err, "forward pass failed at %v", l)
		}
	}
	s.evaluated = true
	s.passes++
	s.logger.Printf("forward pass %d", s.passes)
	return nil
}

// Backward backpropagates the injected errors through every layer in reverse order and
// accumulates the gradient of every connection. Gradients add up across calls; use
// ZeroGradients to clear them.
func (s *System) Backward() error {
	s.Lock()
	defer s.Unlock()
	if err := s.build(); err != nil {
		return err
	}
	if !s.evaluated {
		return errors.New("backward pass requires a forward pass first")
	}
	for i := len(s.order) - 1; i >= 0; i-- {
		l := s.order[i]
		if len(l.Dependencies()) == 0 {
			continue
		}
		if err := l.Backpropagate(); err != nil {
			return errors.Wrapf(err, "backward pass failed at %v", l)
		}
	}
	s.logger.Printf("backward pass %d", s.passes)
	return nil
}
