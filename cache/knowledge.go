package cache

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Knowledge is the learned state of a system at one frame: a flat vector of weights,
// together with the file it persists to.
type Knowledge struct {
	File    string
	Frame   int
	Weights *tensor.Dense // 1-D Float32; nil when there are no weights
}

// NewKnowledge creates a Knowledge holding a copy of values.
func NewKnowledge(file string, frame int, values []float32) *Knowledge {
	k := &Knowledge{File: file, Frame: frame}
	if len(values) > 0 {
		backing := make([]float32, len(values))
		copy(backing, values)
		k.Weights = tensor.New(tensor.WithShape(len(backing)), tensor.WithBacking(backing))
	}
	return k
}

// Values returns a copy of the weights.
func (k *Knowledge) Values() []float32 {
	if k == nil || k.Weights == nil {
		return nil
	}
	switch data := k.Weights.Data().(type) {
	case []float32:
		retVal := make([]float32, len(data))
		copy(retVal, data)
		return retVal
	case float32:
		return []float32{data}
	}
	return nil
}

// Len returns the number of weights.
func (k *Knowledge) Len() int {
	if k == nil || k.Weights == nil {
		return 0
	}
	return k.Weights.Shape().TotalSize()
}

// Eq compares content: file, frame and every weight.
func (k *Knowledge) Eq(other *Knowledge) bool {
	if k == nil || other == nil {
		return k == other
	}
	if k.File != other.File || k.Frame != other.Frame {
		return false
	}
	a, b := k.Values(), other.Values()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (k *Knowledge) Clone() *Knowledge { return NewKnowledge(k.File, k.Frame, k.Values()) }

func (k *Knowledge) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(k.File); err != nil {
		return nil, err
	}
	if err := enc.Encode(k.Frame); err != nil {
		return nil, err
	}
	if err := enc.Encode(k.Values()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (k *Knowledge) GobDecode(p []byte) error {
	dec := gob.NewDecoder(bytes.NewBuffer(p))
	var file string
	var frame int
	var values []float32
	if err := dec.Decode(&file); err != nil {
		return err
	}
	if err := dec.Decode(&frame); err != nil {
		return err
	}
	if err := dec.Decode(&values); err != nil {
		return err
	}
	*k = *NewKnowledge(file, frame, values)
	return nil
}

// ReadKnowledgeFromFile reads a Knowledge written by WriteKnowledgeToFile.
func ReadKnowledgeFromFile(path string) (*Knowledge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	k := new(Knowledge)
	if err = gob.NewDecoder(f).Decode(k); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %q", path)
	}
	if k.File == "" {
		k.File = path
	}
	return k, nil
}

// WriteKnowledgeToFile writes k to path. The data is written to a temporary file in the
// same directory first and renamed into place, so path never holds a partial snapshot.
func WriteKnowledgeToFile(path string, k *Knowledge) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return errors.WithStack(err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WithStack(err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err = gob.NewEncoder(f).Encode(k); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to encode %q", path)
	}
	if err = f.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// PreviewPath returns the path of the PNG preview that accompanies the snapshot at file.
func PreviewPath(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + ".png"
}
