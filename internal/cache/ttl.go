// ABOUTME: Thread-safe TTL cache for tracking recently seen keys
// ABOUTME: Used to fast-reject consumed challenge ids without a store round-trip

package cache

import (
	"container/list"
	"sync"
	"time"
)

// ttlEntry stores the timestamp and list element for a cached key.
type ttlEntry struct {
	timestamp time.Time
	element   *list.Element
}

// TTL provides a thread-safe, time-bounded, size-limited set of seen keys.
// Entries expire after the configured TTL and the oldest entry is evicted
// when the cache is full. A doubly-linked list maintains insertion order for
// O(1) eviction.
type TTL struct {
	mu      sync.RWMutex
	seen    map[string]*ttlEntry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewTTL creates a new TTL cache with the specified lifetime and maximum
// size. A background goroutine periodically removes expired entries.
func NewTTL(ttl time.Duration, maxSize int) *TTL {
	c := &TTL{
		seen:    make(map[string]*ttlEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Check returns true if the key has been seen and is not expired.
func (c *TTL) Check(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.seen[key]
	if !ok {
		return false
	}
	return time.Since(entry.timestamp) < c.ttl
}

// CheckAndMark atomically checks whether a key has been seen and marks it if
// not. Returns true if the key was already seen, false if it is new and now
// marked. Separate Check/Mark calls would leave a TOCTOU window.
func (c *TTL) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[key]
	if ok && time.Since(entry.timestamp) < c.ttl {
		return true
	}

	c.markLocked(key)
	return false
}

// Mark records that a key has been seen.
func (c *TTL) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key)
}

// markLocked is the internal mark implementation. Must be called with mu held.
func (c *TTL) markLocked(key string) {
	now := time.Now()

	if entry, exists := c.seen[key]; exists {
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &ttlEntry{
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *TTL) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// cleanup periodically removes expired entries until Close is called.
func (c *TTL) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

// removeExpired drops every entry older than the TTL.
func (c *TTL) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for front := c.order.Front(); front != nil; {
		key, _ := front.Value.(string)
		entry := c.seen[key]
		if entry == nil || time.Since(entry.timestamp) < c.ttl {
			break
		}
		next := front.Next()
		c.order.Remove(front)
		delete(c.seen, key)
		front = next
	}
}

// Len returns the number of tracked keys, expired or not.
func (c *TTL) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}

// Close stops the background cleanup goroutine.
func (c *TTL) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
