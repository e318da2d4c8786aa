package cache

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Element holds the knowledge of one frame, either in memory (resident) or only in its
// backing file.
type Element struct {
	sync.Mutex
	knowledge *Knowledge
	file      string
	loaded    bool
	writeOnce bool // the in-memory knowledge has not been written to file yet
}

// Load reads the backing file if the element is not resident. On failure the element
// stays non-resident.
func (e *Element) Load() error {
	e.Lock()
	defer e.Unlock()
	return e.load()
}

func (e *Element) load() error {
	if e.loaded {
		return nil
	}
	k, err := ReadKnowledgeFromFile(e.file)
	if err != nil {
		return errors.Wrapf(err, "failed to load %q", e.file)
	}
	e.knowledge = k
	e.loaded = true
	return nil
}

// Unload releases the in-memory knowledge. Knowledge that was set but never written is
// written to the backing file first. If that write fails the element stays resident and
// will try again on the next Unload.
func (e *Element) Unload() error {
	e.Lock()
	defer e.Unlock()
	if !e.loaded {
		return nil
	}
	if e.writeOnce {
		if err := WriteKnowledgeToFile(e.file, e.knowledge); err != nil {
			return errors.Wrapf(err, "failed to unload %q", e.file)
		}
		e.writeOnce = false
	}
	e.knowledge = nil
	e.loaded = false
	return nil
}

// Set replaces the knowledge and adopts its file as the backing file.
func (e *Element) Set(k *Knowledge) {
	e.Lock()
	e.knowledge = k
	e.file = k.File
	e.loaded = true
	e.writeOnce = true
	e.Unlock()
}

// Knowledge returns the knowledge. A non-resident element reads its backing file but
// stays non-resident, so residency is only ever changed by the owning cache.
func (e *Element) Knowledge() (*Knowledge, error) {
	e.Lock()
	defer e.Unlock()
	if e.loaded {
		return e.knowledge, nil
	}
	k, err := ReadKnowledgeFromFile(e.file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %q", e.file)
	}
	return k, nil
}

// IsLoaded returns true if the knowledge is in memory.
func (e *Element) IsLoaded() bool {
	e.Lock()
	defer e.Unlock()
	return e.loaded
}

// File returns the backing file.
func (e *Element) File() string {
	e.Lock()
	defer e.Unlock()
	return e.file
}

// Destroy removes the backing file and its preview if they exist, and drops the
// in-memory knowledge without writing it.
func (e *Element) Destroy() error {
	e.Lock()
	defer e.Unlock()
	e.knowledge = nil
	e.loaded = false
	e.writeOnce = false
	if e.file == "" {
		return nil
	}

	return removeFiles(e.file)
}

// removeFiles removes a backing file and its preview. Files that do not exist are
// ignored.
func removeFiles(file string) error {
	var errs manyErr
	for _, f := range []string{file, PreviewPath(file)} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			errs = append(errs, errors.WithStack(err))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
