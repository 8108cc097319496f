// Package keyed keeps lazily created per-key values with idle expiry and a
// bounded size. It backs the per-IP login limiter and the per-session caches.
package keyed

import (
	"sync"
	"time"
)

// DefaultMaxEntries bounds a registry when no explicit limit is given.
const DefaultMaxEntries = 10000

type entry[V any] struct {
	value      V
	lastAccess time.Time
}

// Registry maps keys to values created on first use.
type Registry[V any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[V]
	newValue   func(key string) V
	idle       time.Duration
	maxEntries int
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// New creates a registry. Entries untouched for twice the idle interval are
// dropped by a background sweep that runs every idle interval; idle <= 0
// disables the sweep.
func New[V any](newValue func(key string) V, idle time.Duration, maxEntries int) *Registry[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	r := &Registry[V]{
		entries:    make(map[string]*entry[V]),
		newValue:   newValue,
		idle:       idle,
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if idle > 0 {
		go r.cleanupStale()
	}
	return r
}

// Get returns the value for key, creating it when absent.
func (r *Registry[V]) Get(key string) V {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		if len(r.entries) >= r.maxEntries {
			r.evictOldest()
		}
		e = &entry[V]{value: r.newValue(key)}
		r.entries[key] = e
	}
	e.lastAccess = r.now()
	return e.value
}

// Put stores v under key, replacing any existing value.
func (r *Registry[V]) Put(key string, v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; !ok && len(r.entries) >= r.maxEntries {
		r.evictOldest()
	}
	r.entries[key] = &entry[V]{value: v, lastAccess: r.now()}
}

// Peek returns the value for key without creating or touching it.
func (r *Registry[V]) Peek(key string) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete drops key.
func (r *Registry[V]) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

func (r *Registry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops the background sweep.
func (r *Registry[V]) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for k, e := range r.entries {
		if oldestKey == "" || e.lastAccess.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.lastAccess
		}
	}
	if oldestKey != "" {
		delete(r.entries, oldestKey)
	}
}

// Sweep removes entries idle for more than twice the idle interval.
func (r *Registry[V]) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	cutoff := r.now().Add(-r.idle * 2)
	for k, e := range r.entries {
		if e.lastAccess.Before(cutoff) {
			delete(r.entries, k)
			removed++
		}
	}
	return removed
}

func (r *Registry[V]) cleanupStale() {
	ticker := time.NewTicker(r.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.stop:
			return
		}
	}
}
