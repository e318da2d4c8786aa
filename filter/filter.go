// Package filter builds layers and their connections on top of a Graph.
//
// A filter creates the layers it needs, registers them with the graph and wires their
// units together. The weights of every connection it creates are allocated from the
// graph's weight store.
package filter

import "github.com/gorgonia/neuralflow/neuron"

// Graph is what a Filter needs from the system it attaches to.
type Graph interface {
	// Add registers a layer. Adding a layer twice is not an error.
	Add(l *neuron.Layer) error

	// Weights returns the store that new connections allocate from.
	Weights() *neuron.Weights
}

// Filter is a topology builder.
type Filter interface {
	Attach(g Graph) error
}
