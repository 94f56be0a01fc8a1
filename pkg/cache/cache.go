// Package cache provides an in-process key/value cache with per-entry TTL.
//
// A Manager is owned by whoever constructs it; there is no package-level
// instance. Entries are independent and writes are last-writer-wins, so the
// only coordination is a read/write mutex around the map. Values are returned
// as stored: callers must treat mutable values (maps, slices, pointers) as
// shared with the cache.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Observer receives cache events. internal/metrics implements it with
// Prometheus counters.
type Observer interface {
	Hit(cache string)
	Miss(cache string)
	Evict(cache string, n int)
}

type nopObserver struct{}

func (nopObserver) Hit(string)        {}
func (nopObserver) Miss(string)       {}
func (nopObserver) Evict(string, int) {}

type config struct {
	name       string
	defaultTTL time.Duration
	now        func() time.Time
	observer   Observer
}

// Option configures a Manager.
type Option func(*config)

// WithDefaultTTL sets the TTL applied by Set calls that carry no WithTTL
// option. Zero or negative means entries never expire.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *config) { c.defaultTTL = ttl }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithName labels the cache in observer events.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(c *config) {
		if o != nil {
			c.observer = o
		}
	}
}

type setConfig struct {
	ttl    time.Duration
	hasTTL bool
}

// SetOption configures a single Set call.
type SetOption func(*setConfig)

// WithTTL overrides the instance default TTL for one entry. A negative TTL
// stores an entry that is already expired; zero stores one that never expires.
func WithTTL(ttl time.Duration) SetOption {
	return func(c *setConfig) {
		c.ttl = ttl
		c.hasTTL = true
	}
}

type entry[T any] struct {
	value     T
	storedAt  time.Time
	expiresAt time.Time // zero: never expires
}

// expired reports whether e is past its expiry at now. An entry expires
// exactly when now >= storedAt+ttl.
func (e entry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Manager is a concurrency-safe TTL cache of T values keyed by string.
type Manager[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	cfg     config
	group   singleflight.Group
}

// New creates an empty Manager.
func New[T any](opts ...Option) *Manager[T] {
	cfg := config{
		name:     "default",
		now:      time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager[T]{
		entries: make(map[string]entry[T]),
		cfg:     cfg,
	}
}

// Name returns the label given by WithName.
func (m *Manager[T]) Name() string { return m.cfg.name }

// DefaultTTL returns the instance default TTL.
func (m *Manager[T]) DefaultTTL() time.Duration { return m.cfg.defaultTTL }

// Set stores value under key, replacing any existing entry.
func (m *Manager[T]) Set(key string, value T, opts ...SetOption) {
	sc := setConfig{ttl: m.cfg.defaultTTL}
	for _, opt := range opts {
		opt(&sc)
	}

	now := m.cfg.now()
	e := entry[T]{value: value, storedAt: now}
	switch {
	case sc.hasTTL && sc.ttl != 0:
		e.expiresAt = now.Add(sc.ttl)
	case !sc.hasTTL && sc.ttl > 0:
		e.expiresAt = now.Add(sc.ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

// Get returns the value for key if present and unexpired. An expired entry is
// removed as a side effect.
func (m *Manager[T]) Get(key string) (T, bool) {
	e, ok := m.lookup(key)
	if !ok {
		m.cfg.observer.Miss(m.cfg.name)
		var zero T
		return zero, false
	}
	m.cfg.observer.Hit(m.cfg.name)
	return e.value, true
}

// lookup is Get without observer events.
func (m *Manager[T]) lookup(key string) (entry[T], bool) {
	now := m.cfg.now()

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return entry[T]{}, false
	}
	if !e.expired(now) {
		return e, true
	}

	m.mu.Lock()
	// Only drop the entry we saw; a concurrent Set may have replaced it.
	if cur, ok := m.entries[key]; ok && cur.storedAt.Equal(e.storedAt) && cur.expired(now) {
		delete(m.entries, key)
		m.mu.Unlock()
		m.cfg.observer.Evict(m.cfg.name, 1)
		return entry[T]{}, false
	}
	m.mu.Unlock()
	return entry[T]{}, false
}

// Peek is Get without hit or miss notifications, for housekeeping reads.
func (m *Manager[T]) Peek(key string) (T, bool) {
	e, ok := m.lookup(key)
	return e.value, ok
}

// Has reports whether key holds an unexpired entry.
func (m *Manager[T]) Has(key string) bool {
	_, ok := m.lookup(key)
	return ok
}

// Delete removes key. Deleting a missing key is a no-op.
func (m *Manager[T]) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Clear removes every entry.
func (m *Manager[T]) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]entry[T])
	m.mu.Unlock()
}

// Size returns the number of unexpired entries, evicting expired ones.
func (m *Manager[T]) Size() int {
	m.Sweep()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep removes every expired entry and returns how many were removed.
func (m *Manager[T]) Sweep() int {
	now := m.cfg.now()
	m.mu.Lock()
	n := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			n++
		}
	}
	m.mu.Unlock()
	if n > 0 {
		m.cfg.observer.Evict(m.cfg.name, n)
	}
	return n
}

// Keys returns the unexpired keys in sorted order.
func (m *Manager[T]) Keys() []string {
	now := m.cfg.now()
	m.mu.RLock()
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// GetOrSet returns the cached value for key, or calls factory once, stores its
// result with the default TTL and returns it. Concurrent misses on the same key
// may each call factory.
func (m *Manager[T]) GetOrSet(key string, factory func() T) T {
	if v, ok := m.Get(key); ok {
		return v
	}
	v := factory()
	m.Set(key, v)
	return v
}

// GetOrSetAsync is GetOrSet for a factory that can fail or block. A hit
// returns without calling factory. Concurrent misses on the same key share a
// single factory call. If factory fails nothing is stored and the error is
// returned to every waiting caller. Cancelling ctx abandons the wait but not
// the shared factory call.
func (m *Manager[T]) GetOrSetAsync(ctx context.Context, key string, factory func(context.Context) (T, error)) (T, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}

	ch := m.group.DoChan(key, func() (any, error) {
		// A caller that lost the race may arrive after the winner stored.
		if e, ok := m.lookup(key); ok {
			return e.value, nil
		}
		v, err := factory(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		m.Set(key, v)
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T) // nil interface values come back untyped
		return v, nil
	}
}
