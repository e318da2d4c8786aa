// Package cache keeps the per-frame knowledge of a system in memory, up to a bound, and
// spills the rest to disk.
//
// A Cache is safe for concurrent use. When a frame is set or fetched and the number of
// resident frames has reached the bound, the frames that became resident earliest are
// written to their files and released. Fetching a frame does not change its position.
package cache

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Config configures a Cache.
type Config struct {
	Dir         string // directory holding the backing files
	MaxElements int    // maximum number of resident frames
}

// DefaultConfig returns a Config that keeps 8 frames in memory.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		MaxElements: 8,
	}
}

// IsValid returns true if the config can be used to create a cache.
func (c Config) IsValid() bool { return c.Dir != "" && c.MaxElements >= 1 }

type residency struct {
	frame int
	n     uint64
}

// Cache maps frames to elements.
type Cache struct {
	sync.Mutex
	conf Config

	elements  map[int]*Element
	residents []residency // in the order they became resident
	counter   uint64

	lumberjack
}

// New creates a cache.
func New(conf Config) (*Cache, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid cache config %+v", conf)
	}
	return &Cache{
		conf:     conf,
		elements: make(map[int]*Element),
	}, nil
}

// Path returns the default backing file of a frame.
func (c *Cache) Path(frame int) string {
	return filepath.Join(c.conf.Dir, fmt.Sprintf("knowledge-%06d.gob", frame))
}

// Set stores a copy of k as the knowledge of frame. If k has no file the copy is given
// Path(frame). When the frame already had a different backing file, that file is
// removed. The element is resident afterwards, and counts as the most recently inserted.
func (c *Cache) Set(frame int, k *Knowledge) (*Element, error) {
	if k == nil {
		return nil, errors.Errorf("cannot set nil knowledge for frame %d", frame)
	}
	c.Lock()
	defer c.Unlock()

	kc := *k
	if kc.File == "" {
		kc.File = c.Path(frame)
	}
	e, ok := c.elements[frame]
	resident := ok && c.isResident(frame)
	if resident {
		c.forget(frame)
	}
	if err := c.evict(); err != nil {
		if resident {
			c.record(frame)
		}
		return nil, err
	}
	var superseded string
	if ok {
		superseded = e.File()
	} else {
		e = new(Element)
		c.elements[frame] = e
	}
	e.Set(&kc)
	c.record(frame)
	if superseded != "" && superseded != kc.File {
		c.log("frame %d moved from %q to %q", frame, superseded, kc.File)
		if err := removeFiles(superseded); err != nil {
			return e, errors.Wrapf(err, "failed to remove the previous file of frame %d", frame)
		}
	}
	return e, nil
}

// Get returns the element of frame, loading it if it is not resident. The boolean is
// false if the frame was never set.
func (c *Cache) Get(frame int) (*Element, bool, error) {
	c.Lock()
	defer c.Unlock()
	return c.get(frame)
}

// Knowledge returns the knowledge of frame, loading it if it is not resident. Unlike
// Get followed by Element.Knowledge, the frame cannot be evicted in between.
func (c *Cache) Knowledge(frame int) (*Knowledge, bool, error) {
	c.Lock()
	defer c.Unlock()
	e, ok, err := c.get(frame)
	if err != nil || !ok {
		return nil, ok, err
	}
	k, err := e.Knowledge()
	if err != nil {
		return nil, true, err
	}
	return k, true, nil
}

func (c *Cache) get(frame int) (*Element, bool, error) {
	e, ok := c.elements[frame]
	if !ok {
		return nil, false, nil
	}
	if c.isResident(frame) {
		return e, true, nil
	}
	if err := c.evict(); err != nil {
		return nil, true, err
	}
	if err := e.Load(); err != nil {
		return nil, true, err
	}
	c.record(frame)
	return e, true, nil
}

// Clear destroys every element: backing files are removed and nothing is written.
func (c *Cache) Clear() error {
	c.Lock()
	defer c.Unlock()

	var errs manyErr
	for frame, e := range c.elements {
		if err := e.Destroy(); err != nil {
			errs = append(errs, errors.Wrapf(err, "frame %d", frame))
		}
	}
	c.elements = make(map[int]*Element)
	c.residents = c.residents[:0]
	c.counter = 0
	c.log("clear: %d errors", len(errs))
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Remove destroys the element of frame and forgets it.
func (c *Cache) Remove(frame int) error {
	c.Lock()
	defer c.Unlock()

	e, ok := c.elements[frame]
	if !ok {
		return nil
	}
	c.forget(frame)
	delete(c.elements, frame)
	return e.Destroy()
}

// Len returns the number of frames known to the cache.
func (c *Cache) Len() int {
	c.Lock()
	defer c.Unlock()
	return len(c.elements)
}

// Resident returns the resident frames, earliest first.
func (c *Cache) Resident() []int {
	c.Lock()
	defer c.Unlock()
	retVal := make([]int, len(c.residents))
	for i, r := range c.residents {
		retVal[i] = r.frame
	}
	return retVal
}

// evict unloads the earliest resident elements until there is room for one more.
func (c *Cache) evict() error {
	for len(c.residents) >= c.conf.MaxElements {
		oldest := c.residents[0]
		if err := c.elements[oldest.frame].Unload(); err != nil {
			return errors.Wrapf(err, "failed to evict frame %d", oldest.frame)
		}
		c.residents = c.residents[1:]
		c.log("evict frame %d (resident since %d)", oldest.frame, oldest.n)
	}
	return nil
}

func (c *Cache) record(frame int) {
	c.residents = append(c.residents, residency{frame: frame, n: c.counter})
	c.log("resident frame %d (%d)", frame, c.counter)
	c.counter++
}

func (c *Cache) forget(frame int) {
	for i, r := range c.residents {
		if r.frame == frame {
			c.residents = append(c.residents[:i], c.residents[i+1:]...)
			return
		}
	}
}

func (c *Cache) isResident(frame int) bool {
	for _, r := range c.residents {
		if r.frame == frame {
			return true
		}
	}
	return false
}

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}
