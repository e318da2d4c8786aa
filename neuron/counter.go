package neuron

import "sync/atomic"

// Counter is a monotonically increasing id source. It is safe for concurrent use.
type Counter struct {
	n int64
}

// Next returns the next id.
func (c *Counter) Next() int64 { return atomic.AddInt64(&c.n, 1) - 1 }

// Peek returns the id that the next call to Next will return.
func (c *Counter) Peek() int64 { return atomic.LoadInt64(&c.n) }

// Reset restarts the counter at 0. Used to get deterministic ids in tests.
func (c *Counter) Reset() { atomic.StoreInt64(&c.n, 0) }

// ConnectionIDs is the process-wide counter that numbers every Connection.
var ConnectionIDs Counter
