//go:build debug
// +build debug

package cache

import (
	"bytes"
	"fmt"
	"sync"
)

type lumberjack struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lumberjack) log(msg string, args ...interface{}) {
	l.mu.Lock()
	fmt.Fprintf(&l.buf, msg, args...)
	l.buf.WriteByte('\n')
	l.mu.Unlock()
}

// Log returns everything the cache has logged.
func (l *lumberjack) Log() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}
