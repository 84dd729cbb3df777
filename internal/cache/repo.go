// ABOUTME: Generic write-through in-memory index over a durable loader
// ABOUTME: Enforces the memory-first read, read-repair on miss discipline

package cache

import (
	"context"
	"errors"
	"sync"
)

// ErrSkipCache is returned by loaders that found nothing worth caching.
// GetOrLoad treats it as a miss without an error.
var ErrSkipCache = errors.New("skip cache")

// Repo is a write-through, read-mostly index mapping keys to records. The
// durable store stays the source of truth: callers write durably first and
// then Put here, so a crash in between leaves a cold cache rather than a
// phantom record. Reads go memory-first and repopulate from the loader on
// miss.
//
// Values escape the lock as soon as Get returns, so callers must treat
// cached values as immutable: an Update callback returns a replacement, it
// never mutates the value it was handed.
type Repo[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewRepo creates an empty index.
func NewRepo[V any]() *Repo[V] {
	return &Repo[V]{entries: make(map[string]V)}
}

// Get returns the cached value for key, if present.
func (r *Repo[V]) Get(key string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Put stores a value. Call only after the durable write succeeded.
func (r *Repo[V]) Put(key string, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
}

// Delete removes a key from the index.
func (r *Repo[V]) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// GetOrLoad returns the cached value for key, falling back to the loader on
// miss and repopulating the index with its result. A loader returning
// ErrSkipCache reports a clean miss; any other error is passed through
// without caching.
func (r *Repo[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, bool, error) {
	if v, ok := r.Get(key); ok {
		return v, true, nil
	}

	var zero V
	v, err := load(ctx)
	if err != nil {
		if errors.Is(err, ErrSkipCache) {
			return zero, false, nil
		}
		return zero, false, err
	}

	r.Put(key, v)
	return v, true, nil
}

// Update applies fn to the cached value for key while holding the write
// lock, serializing per-index mutations so concurrent updates to the same
// record cannot lose writes. No-op if the key is absent.
func (r *Repo[V]) Update(key string, fn func(v V) V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.entries[key]; ok {
		r.entries[key] = fn(v)
	}
}

// Keys returns a snapshot of the cached keys.
func (r *Repo[V]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of cached entries.
func (r *Repo[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
