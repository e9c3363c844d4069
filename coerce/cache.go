package coerce

import (
	"container/list"
	"fmt"
	"sync"
)

// DefaultCacheSize bounds the coercion result cache when no size is given.
const DefaultCacheSize = 1024

// cacheEntry stores a memoized coercion outcome plus its list element so the
// LRU order can be maintained in O(1).
type cacheEntry struct {
	key     string
	value   any
	err     error
	element *list.Element
}

// Coercer wraps Coerce with a bounded, thread-safe LRU result cache keyed by
// (value, type). Successful and failed coercions are both cached; container
// values (array, object) bypass the cache since they have no stable key.
type Coercer struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List // most recently used at front
	maxSize int
	hits    uint64
	misses  uint64
}

// NewCoercer creates a Coercer whose cache holds at most maxSize entries.
// A maxSize <= 0 selects DefaultCacheSize.
func NewCoercer(maxSize int) *Coercer {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &Coercer{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Coerce converts value into the declared type, consulting the cache first.
func (c *Coercer) Coerce(value any, t Type) (any, error) {
	key, cacheable := cacheKey(value, t)
	if !cacheable {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return Coerce(value, t)
	}

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		c.hits++
		c.order.MoveToFront(entry.element)
		v, err := entry.value, entry.err
		c.mu.Unlock()
		return v, err
	}
	c.misses++
	c.mu.Unlock()

	v, err := Coerce(value, t)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		// Another goroutine raced us here; keep its entry.
		c.order.MoveToFront(entry.element)
	} else {
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
		e := &cacheEntry{key: key, value: v, err: err}
		e.element = c.order.PushFront(e)
		c.entries[key] = e
	}
	c.mu.Unlock()

	return v, err
}

// Stats returns the cumulative cache hit and miss counts. Hits plus misses
// equals the total number of Coerce calls.
func (c *Coercer) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the current number of cached entries.
func (c *Coercer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldest removes the least recently used entry. Must be called with mu held.
func (c *Coercer) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*cacheEntry)
	c.order.Remove(back)
	delete(c.entries, entry.key)
}

// cacheKey builds a stable key for scalar values. Arrays and objects are not
// cacheable: equality for them is structural and a formatted key would not be
// worth the allocation cost on large payloads.
func cacheKey(value any, t Type) (string, bool) {
	switch value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprintf("%s|%T|%v", t, value, value), true
	default:
		return "", false
	}
}
