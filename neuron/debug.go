//go:build debug
// +build debug

package neuron

import "github.com/pkg/errors"

// checkOrdering panics if src has not been evaluated (or set) in the current pass.
func checkOrdering(reader, src *Unit) {
	if !src.active {
		panic(errors.WithStack(&OrderingViolation{Reader: reader.pos, Source: src.pos}))
	}
}
