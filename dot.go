package neuralflow

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
	"github.com/gorgonia/neuralflow/neuron"
	"github.com/pkg/errors"
)

func dotName(l *neuron.Layer) string { return fmt.Sprintf("L%d", int(l.ID())) }

// ToDot returns the layers and their dependencies as a Graphviz digraph. Layers are
// named L<id>.
func (s *System) ToDot() (string, error) {
	s.Lock()
	defer s.Unlock()

	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		return "", errors.WithStack(err)
	}
	g.SetDir(true)

	for _, l := range s.layers {
		attrs := map[string]string{
			"shape": "box",
			"label": fmt.Sprintf("%q", fmt.Sprintf("%v\n%v", l, l.Function())),
		}
		if err := g.AddNode("G", dotName(l), attrs); err != nil {
			return "", errors.WithStack(err)
		}
	}
	for _, l := range s.layers {
		for _, dep := range l.Dependencies() {
			if !s.owns(dep) {
				continue
			}
			if err := g.AddEdge(dotName(dep), dotName(l), true, nil); err != nil {
				return "", errors.WithStack(err)
			}
		}
	}
	return g.String(), nil
}
