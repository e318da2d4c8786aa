package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorgonia/neuralflow"
	"github.com/gorgonia/neuralflow/cache"
	"github.com/gorgonia/neuralflow/encoding/preview"
	"github.com/gorgonia/neuralflow/filter"
	"github.com/gorgonia/neuralflow/neuron"
	"gorgonia.org/vecf32"

	_ "net/http/pprof"
)

var (
	dir      = flag.String("dir", filepath.Join(os.TempDir(), "neuralflow"), "checkpoint directory")
	size     = flag.Int("size", 12, "width and height of the input layer")
	kernel   = flag.Int("kernel", 3, "kernel size (odd)")
	features = flag.Int("features", 4, "convolution features")
	frames   = flag.Int("frames", 50, "training frames")
	lr       = flag.Float64("lr", 0.05, "learning rate")
	resident = flag.Int("resident", 4, "checkpoints kept in memory")
	addr     = flag.String("addr", "", "serve the topology feed and previews on this address, e.g. :8080")
	stats    = flag.String("stats", "", "write per-frame statistics to this CSV file")
	model    = flag.String("model", "", "save the best weights to this file")
	verbose  = flag.Bool("v", false, "print the execution log")
)

// sgd applies one step of plain gradient descent.
func sgd(ws *neuron.Weights, rate float32) error {
	grads := ws.Gradients()
	vecf32.Scale(grads, rate)
	vals := ws.Values()
	vecf32.Sub(vals, grads)
	return ws.SetValues(vals)
}

// sample returns a random input and its target: the mean brightness of the input.
func sample(r *rand.Rand, n int) (input []float32, target float32) {
	input = make([]float32, n)
	for i := range input {
		input[i] = r.Float32()
	}
	return input, vecf32.Sum(input) / float32(n)
}

// step trains on one sample and checkpoints the frame. The checkpoint is taken before
// the update so that its statistics carry the gradients of this frame.
func step(s *neuralflow.System, input *neuron.Layer, dense []*filter.Dense, values []float32, target float32, frame int, rate float32) (loss float32, err error) {
	if err = input.SetValues(values); err != nil {
		return 0, err
	}
	if err = s.Forward(); err != nil {
		return 0, err
	}
	for _, d := range dense {
		diff := d.Output().Unit(0, 0).Value() - target
		loss += diff * diff
		if err = d.Output().InjectErrors([]float32{diff}); err != nil {
			return 0, err
		}
	}
	loss /= float32(len(dense))
	if err = s.Backward(); err != nil {
		return 0, err
	}
	if err = s.Checkpoint(frame); err != nil {
		return 0, err
	}
	if err = sgd(s.Weights(), rate); err != nil {
		return 0, err
	}
	s.ZeroGradients()
	return loss, nil
}

// clearCheckpoints removes every checkpoint file. Failures are only logged: the run
// itself already finished.
func clearCheckpoints(c *cache.Cache, logger *log.Logger) {
	if err := c.Clear(); err != nil {
		logger.Printf("failed to clear checkpoints: %v", err)
	}
}

func run() error {
	conf := neuralflow.DefaultConfig(*dir)
	conf.Name = "mean brightness"
	conf.MaxResident = *resident
	s, err := neuralflow.New(conf)
	if err != nil {
		return err
	}
	defer clearCheckpoints(s.Checkpoints(), log.Default())

	conv, err := filter.NewConvolution(*size, *size, *kernel, *kernel, *features)
	if err != nil {
		return err
	}
	if err = s.Attach(conv); err != nil {
		return err
	}
	var dense []*filter.Dense
	for _, out := range conv.Outputs() {
		d, err := filter.NewDense(out, 1, 1, neuron.Tanh(), true)
		if err != nil {
			return err
		}
		d.SetName(out.Name() + ".dense")
		dense = append(dense, d)
		if err = s.Attach(d); err != nil {
			return err
		}
	}
	if err = s.Build(); err != nil {
		return err
	}
	log.Printf("%d layers, %d weights", len(s.Layers()), s.Weights().Len())

	feed := NewFeed()
	stream := preview.NewStream(256, 256)
	if *addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", feed)
		mux.Handle("/preview", stream)
		mux.HandleFunc("/dot", func(w http.ResponseWriter, r *http.Request) {
			dot, err := s.ToDot()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, dot)
		})
		mux.Handle("/debug/", http.DefaultServeMux)
		go func() {
			log.Printf("http://localhost%s", *addr)
			log.Println(http.ListenAndServe(*addr, mux))
		}()
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	best, bestLoss := -1, math32.Inf(1)
	for frame := 0; frame < *frames; frame++ {
		input, target := sample(r, *size**size)
		loss, err := step(s, conv.Input(), dense, input, target, frame, float32(*lr))
		if err != nil {
			return err
		}
		if loss < bestLoss {
			best, bestLoss = frame, loss
		}
		if err = stream.Update(s.Capture(frame)); err != nil {
			log.Println("preview:", err)
		}
		feed.Publish(describe(frame, loss, s.Layers()))
		log.Printf("frame %d: loss %.5f", frame, loss)
	}

	if best >= 0 {
		if err = s.Restore(best); err != nil {
			return err
		}
		log.Printf("restored frame %d (loss %.5f)", best, bestLoss)
	}
	if *stats != "" {
		if err = s.Dump(*stats); err != nil {
			return err
		}
	}
	if *model != "" {
		if err = s.Save(*model); err != nil {
			return err
		}
	}
	if *verbose {
		s.Log(os.Stdout)
	}
	return nil
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("%+v", err)
	}
}
