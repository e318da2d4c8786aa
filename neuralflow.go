// Package neuralflow drives graphs of layers: it orders them, runs forward and backward
// passes over them, and checkpoints their weights frame by frame.
package neuralflow

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/gorgonia/neuralflow/cache"
	"github.com/gorgonia/neuralflow/encoding/preview"
	"github.com/gorgonia/neuralflow/filter"
	"github.com/gorgonia/neuralflow/neuron"
	"github.com/pkg/errors"
)

var _ filter.Graph = (*System)(nil)

// System is the registry of layers of one graph, together with the store of their
// weights and the cache of their checkpoints.
type System struct {
	sync.Mutex
	Statistics

	conf    Config
	layers  []*neuron.Layer // indexed by LayerID
	order   []*neuron.Layer
	dirty   bool   // layers were added since the last build
	built   uint64 // topology version of order
	weights *neuron.Weights
	cache   *cache.Cache
	preview *preview.Encoder

	evaluated bool // a forward pass has run since the last change
	passes    int

	buf    bytes.Buffer
	logger *log.Logger
}

// New creates an empty system.
func New(conf Config) (*System, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid config %+v", conf)
	}
	if err := os.MkdirAll(conf.CacheDir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	c, err := cache.New(cache.Config{Dir: conf.CacheDir, MaxElements: conf.MaxResident})
	if err != nil {
		return nil, err
	}
	s := &System{
		Statistics: makeStatistics(),
		conf:       conf,
		weights:    neuron.NewWeights(0),
		cache:      c,
	}
	if conf.Preview {
		s.preview = preview.NewEncoder(conf.PreviewSize, conf.PreviewSize)
	}
	s.logger = log.New(&s.buf, "", log.Ltime)
	s.logger.Printf("new system %q, checkpoints in %q", conf.Name, conf.CacheDir)
	return s, nil
}

// Add registers a layer and assigns its LayerID. Adding a registered layer again does
// nothing.
func (s *System) Add(l *neuron.Layer) error {
	if l == nil {
		return errors.New("cannot add a nil layer")
	}
	s.Lock()
	defer s.Unlock()
	if s.owns(l) {
		return nil
	}
	if l.ID() != neuron.NoLayer {
		return errors.WithStack(neuron.Configurationf("%v is registered with another system", l))
	}
	l.SetID(neuron.LayerID(len(s.layers)))
	s.layers = append(s.layers, l)
	s.dirty = true
	s.evaluated = false
	s.logger.Printf("add %v", l)
	return nil
}

// Attach runs every filter against the system, stopping at the first failure.
func (s *System) Attach(filters ...filter.Filter) error {
	for _, f := range filters {
		if err := f.Attach(s); err != nil {
			return errors.Wrapf(err, "failed to attach %T", f)
		}
	}
	return nil
}

// Weights returns the store every connection of the system allocates from.
func (s *System) Weights() *neuron.Weights { return s.weights }

// Checkpoints returns the cache holding the checkpoints.
func (s *System) Checkpoints() *cache.Cache { return s.cache }

// Config returns the configuration of the system.
func (s *System) Config() Config { return s.conf }

// Layers returns every registered layer, indexed by LayerID.
func (s *System) Layers() []*neuron.Layer {
	s.Lock()
	defer s.Unlock()
	retVal := make([]*neuron.Layer, len(s.layers))
	copy(retVal, s.layers)
	return retVal
}

// Layer returns the layer registered as id, or nil.
func (s *System) Layer(id neuron.LayerID) *neuron.Layer {
	s.Lock()
	defer s.Unlock()
	if id < 0 || int(id) >= len(s.layers) {
		return nil
	}
	return s.layers[id]
}

// Inputs returns the layers that no other layer feeds.
func (s *System) Inputs() (retVal []*neuron.Layer) {
	s.Lock()
	defer s.Unlock()
	for _, l := range s.layers {
		if len(l.Dependencies()) == 0 {
			retVal = append(retVal, l)
		}
	}
	return
}

// Outputs returns the layers that feed no other registered layer.
func (s *System) Outputs() (retVal []*neuron.Layer) {
	s.Lock()
	defer s.Unlock()
	return s.outputs()
}

func (s *System) outputs() (retVal []*neuron.Layer) {
	for _, l := range s.layers {
		var fed bool
		for _, c := range l.Children() {
			if s.owns(c) {
				fed = true
				break
			}
		}
		if !fed {
			retVal = append(retVal, l)
		}
	}
	return
}

// ZeroGradients clears the gradient accumulators of every connection.
func (s *System) ZeroGradients() { s.weights.ZeroGradients() }

// Save writes the current weights to filename.
func (s *System) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	k := cache.NewKnowledge(filename, -1, s.weights.Values())
	if err = gob.NewEncoder(f).Encode(k); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}

// Load replaces the current weights with the ones saved in filename. The system must
// have the same topology as the one that saved them.
func (s *System) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	k := new(cache.Knowledge)
	if err = gob.NewDecoder(f).Decode(k); err != nil {
		return errors.WithStack(err)
	}
	if err = s.weights.SetValues(k.Values()); err != nil {
		return errors.Wrapf(err, "cannot load %q", filename)
	}
	s.logger.Printf("load %d weights from %q", k.Len(), filename)
	return nil
}

// Log writes the execution log of the system.
func (s *System) Log(w io.Writer) {
	s.Lock()
	defer s.Unlock()
	fmt.Fprint(w, s.buf.String())
	if l := s.cache.Log(); l != "" {
		fmt.Fprintln(w, "Cache:")
		fmt.Fprint(w, l)
	}
}

func (s *System) owns(l *neuron.Layer) bool {
	id := l.ID()
	return id >= 0 && int(id) < len(s.layers) && s.layers[id] == l
}
