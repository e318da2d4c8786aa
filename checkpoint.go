package neuralflow

import (
	"github.com/gorgonia/neuralflow/cache"
	"github.com/pkg/errors"
)

// Capture snapshots the current weights as the knowledge of frame.
func (s *System) Capture(frame int) *cache.Knowledge {
	return cache.NewKnowledge(s.cache.Path(frame), frame, s.weights.Values())
}

// Checkpoint stores the current weights as frame. The checkpoint stays in memory until
// the cache needs the room.
func (s *System) Checkpoint(frame int) error {
	k := s.Capture(frame)
	if s.preview != nil {
		if err := s.preview.WriteFile(k); err != nil {
			return errors.Wrapf(err, "failed to write preview of frame %d", frame)
		}
	}
	if _, err := s.cache.Set(frame, k); err != nil {
		return errors.Wrapf(err, "failed to checkpoint frame %d", frame)
	}

	s.Lock()
	defer s.Unlock()
	s.record(frame, s.outputs(), s.weights.Gradients(), len(s.cache.Resident()))
	s.logger.Printf("checkpoint frame %d (%d weights)", frame, k.Len())
	return nil
}

// Restore replaces the current weights with the checkpoint of frame.
func (s *System) Restore(frame int) error {
	k, ok, err := s.cache.Knowledge(frame)
	if err != nil {
		return errors.Wrapf(err, "failed to restore frame %d", frame)
	}
	if !ok {
		return errors.Errorf("no checkpoint for frame %d", frame)
	}
	if err = s.weights.SetValues(k.Values()); err != nil {
		return errors.Wrapf(err, "failed to restore frame %d", frame)
	}

	s.Lock()
	s.logger.Printf("restore frame %d", frame)
	s.Unlock()
	return nil
}
