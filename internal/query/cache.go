// Package query caches read results by composite key, collapses concurrent
// identical reads into one call and invalidates by key prefix after writes.
package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"gitea.jw6.us/james/dashboard/internal/metrics"
)

const keySep = "\x1f"

// Key is an ordered composite identifier: resource name first, then the
// serialized parameters.
type Key []string

// NewKey builds a key from a resource name and parameters formatted with %v.
func NewKey(resource string, params ...any) Key {
	k := make(Key, 0, 1+len(params))
	k = append(k, resource)
	for _, p := range params {
		k = append(k, fmt.Sprint(p))
	}
	return k
}

func (k Key) String() string { return strings.Join(k, keySep) }

// Resource returns the first element of the key.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether prefix matches the leading elements of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Status is the lifecycle of one cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// State is a snapshot of one entry.
type State struct {
	Status    Status
	Value     any
	Err       error
	UpdatedAt time.Time
}

type entry struct {
	key       Key
	value     any
	err       error
	updatedAt time.Time
}

// Options tune freshness and retry behaviour.
type Options struct {
	// StaleTime is how long a successful result is served without a new call.
	// Zero means every read performs a call (still deduplicated).
	StaleTime time.Duration
	// Retries is the number of extra attempts after a failed read.
	Retries int
}

// Cache is safe for concurrent use.
type Cache struct {
	opts  Options
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	// gens holds a generation per key ever read. Invalidation bumps it so
	// calls started earlier neither repopulate the cache nor get joined by
	// later reads.
	gens    map[string]uint64
	waiters map[string]int
}

// New returns an empty cache using opts.
func New(opts Options) *Cache {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Cache{
		opts:    opts,
		now:     time.Now,
		entries: make(map[string]*entry),
		gens:    make(map[string]uint64),
		waiters: make(map[string]int),
	}
}

// Fetch returns the cached value for key when fresh, otherwise runs fn once
// for all concurrent callers of the same key. A caller whose ctx ends stops
// waiting; the shared call keeps running and still fills the cache.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok && v != nil {
		return zero, fmt.Errorf("query: cached value for %q has type %T", key.String(), v)
	}
	return typed, nil
}

func (c *Cache) fetch(ctx context.Context, key Key, fn func(ctx context.Context) (any, error)) (any, error) {
	k := key.String()

	c.mu.Lock()
	if e, ok := c.entries[k]; ok && e.err == nil && c.fresh(e) {
		c.mu.Unlock()
		metrics.ObserveCache(key.Resource(), "hit")
		return e.value, nil
	}
	gen, known := c.gens[k]
	if !known {
		c.gens[k] = gen
	}
	c.waiters[k]++
	c.mu.Unlock()

	defer c.release(k)

	flightKey := fmt.Sprintf("%s#%d", k, gen)
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		metrics.ObserveCache(key.Resource(), "miss")
		v, err := c.call(detached, fn)
		c.store(key, gen, v, err)
		return v, err
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.ObserveCache(key.Resource(), "shared")
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) call(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	var (
		v   any
		err error
	)
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, err
}

func (c *Cache) store(key Key, gen uint64, v any, err error) {
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[k] != gen {
		return
	}
	c.entries[k] = &entry{key: key, value: v, err: err, updatedAt: c.now()}
}

func (c *Cache) release(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiters[k]--
	if c.waiters[k] <= 0 {
		delete(c.waiters, k)
	}
}

func (c *Cache) fresh(e *entry) bool {
	if c.opts.StaleTime <= 0 {
		return false
	}
	return c.now().Sub(e.updatedAt) < c.opts.StaleTime
}

// Invalidate drops every entry under prefix. Reads issued afterwards always
// start a new call; reads already in flight may still return old data but
// will not store it.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, k)
			removed++
		}
	}
	for k := range c.gens {
		if splitKey(k).HasPrefix(prefix) {
			c.gens[k]++
		}
	}
	metrics.ObserveCache(prefix.Resource(), "invalidate")
	return removed
}

// SetData stores v under key as a fresh successful result.
func (c *Cache) SetData(key Key, v any) {
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, known := c.gens[k]; known {
		c.gens[k]++
	}
	c.entries[k] = &entry{key: key, value: v, updatedAt: c.now()}
}

// Reset drops all entries and detaches every in-flight read.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	for k := range c.gens {
		c.gens[k]++
	}
}

// State returns a snapshot of key's entry.
func (c *Cache) State(key Key) State {
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, waiting := c.waiters[k]; waiting {
		st := State{Status: StatusPending}
		if e, ok := c.entries[k]; ok {
			st.Value, st.Err, st.UpdatedAt = e.value, e.err, e.updatedAt
		}
		return st
	}
	e, ok := c.entries[k]
	if !ok {
		return State{Status: StatusIdle}
	}
	if e.err != nil {
		return State{Status: StatusError, Err: e.err, UpdatedAt: e.updatedAt}
	}
	return State{Status: StatusSuccess, Value: e.value, UpdatedAt: e.updatedAt}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func splitKey(k string) Key {
	return Key(strings.Split(k, keySep))
}
