package cache

import (
	"sync"
	"sync/atomic"
)

// GeneratedCache memoizes whether a file is generated code for the lifetime
// of one analysis session. It is safe for concurrent use. When two workers
// race on the same file the first stored answer wins and both observe it.
type GeneratedCache struct {
	entries sync.Map // string -> bool
	closed  atomic.Bool
}

// NewGeneratedCache creates an empty cache.
func NewGeneratedCache() *GeneratedCache {
	return &GeneratedCache{}
}

// IsGenerated returns the memoized answer for path, computing it with
// compute on first use. After Close every call computes afresh.
func (c *GeneratedCache) IsGenerated(path string, compute func() bool) bool {
	if c == nil || c.closed.Load() {
		return compute()
	}
	if v, ok := c.entries.Load(path); ok {
		return v.(bool)
	}
	v, _ := c.entries.LoadOrStore(path, compute())
	return v.(bool)
}

// Len returns the number of memoized files.
func (c *GeneratedCache) Len() int {
	n := 0
	c.entries.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Close drops every entry. The cache must not outlive its session.
func (c *GeneratedCache) Close() {
	c.closed.Store(true)
	c.entries.Clear()
}
