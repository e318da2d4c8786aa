package neuralflow

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/chewxy/math32"
	"github.com/gorgonia/neuralflow/neuron"
	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
)

// Record describes the state of a system at one checkpoint.
type Record struct {
	Frame      int
	MeanOutput float32 // mean value of the units of every output layer
	GradientL1 float32 // sum of the absolute gradients
	Resident   int     // checkpoints in memory after this one
}

// Statistics is the history of checkpoints of a system.
type Statistics struct {
	Records []Record
}

func makeStatistics() Statistics {
	return Statistics{
		Records: make([]Record, 0, 64),
	}
}

func (s *Statistics) record(frame int, outputs []*neuron.Layer, grads []float32, resident int) {
	var sum float32
	var n int
	for _, l := range outputs {
		vals := l.Values()
		if len(vals) == 0 {
			continue
		}
		sum += vecf32.Sum(vals)
		n += len(vals)
	}
	var mean float32
	if n > 0 {
		mean = sum / float32(n)
	}

	var l1 float32
	for _, g := range grads {
		l1 += math32.Abs(g)
	}
	s.Records = append(s.Records, Record{
		Frame:      frame,
		MeanOutput: mean,
		GradientL1: l1,
		Resident:   resident,
	})
}

// Dump writes the records as CSV.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"frame", "mean_output", "gradient_l1", "resident"}); err != nil {
		return errors.WithStack(err)
	}
	records := make([][]string, 0, len(s.Records))
	for _, r := range s.Records {
		records = append(records, []string{
			strconv.Itoa(r.Frame),
			strconv.FormatFloat(float64(r.MeanOutput), 'f', 6, 32),
			strconv.FormatFloat(float64(r.GradientL1), 'f', 6, 32),
			strconv.Itoa(r.Resident),
		})
	}
	if err := w.WriteAll(records); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}
