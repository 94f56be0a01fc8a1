// Package reports caches finished analysis reports by run ID.
package reports

import (
	"time"

	"github.com/elonfeng/gapradar/pkg/cache"
)

// Entry is a cached report.
type Entry struct {
	RunID     string     `json:"run_id"`
	Data      any        `json:"data"`
	CachedAt  time.Time  `json:"cached_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil: never expires
}

type setConfig struct {
	ttl    time.Duration
	hasTTL bool
}

// SetOption configures a single Set call.
type SetOption func(*setConfig)

// WithTTL gives the entry a lifetime. Negative stores an already expired entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(c *setConfig) {
		c.ttl = ttl
		c.hasTTL = true
	}
}

// WithTTLMs is WithTTL in milliseconds.
func WithTTLMs(ms int64) SetOption {
	return WithTTL(time.Duration(ms) * time.Millisecond)
}

// ReportCache holds reports keyed by run ID. Entries without a TTL live until
// invalidated.
type ReportCache struct {
	entries *cache.Manager[Entry]
	now     func() time.Time
}

// Option configures a ReportCache.
type Option func(*options)

type options struct {
	now      func() time.Time
	observer cache.Observer
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithObserver forwards cache events, labelled "reports".
func WithObserver(obs cache.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// New creates an empty ReportCache.
func New(opts ...Option) *ReportCache {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &ReportCache{
		entries: cache.New[Entry](
			cache.WithName("reports"),
			cache.WithClock(o.now),
			cache.WithObserver(o.observer),
		),
		now: o.now,
	}
}

// Set stores data for runID. An empty runID is ignored.
func (c *ReportCache) Set(runID string, data any, opts ...SetOption) {
	if runID == "" {
		return
	}
	var sc setConfig
	for _, opt := range opts {
		opt(&sc)
	}

	e := Entry{RunID: runID, Data: data, CachedAt: c.now()}
	if !sc.hasTTL {
		c.entries.Set(runID, e, cache.WithTTL(0))
		return
	}
	// A zero TTL expires immediately here, unlike cache.WithTTL(0).
	ttl := sc.ttl
	if ttl == 0 {
		ttl = -time.Nanosecond
	}
	exp := e.CachedAt.Add(sc.ttl)
	e.ExpiresAt = &exp
	c.entries.Set(runID, e, cache.WithTTL(ttl))
}

// Get returns the entry for runID, or nil when it is missing or expired.
func (c *ReportCache) Get(runID string) *Entry {
	if runID == "" {
		return nil
	}
	e, ok := c.entries.Get(runID)
	if !ok {
		return nil
	}
	return &e
}

// IsValid reports whether runID has an unexpired entry.
func (c *ReportCache) IsValid(runID string) bool {
	return runID != "" && c.entries.Has(runID)
}

// Invalidate drops the given run IDs, or every entry when none are given.
// Unknown IDs are ignored.
func (c *ReportCache) Invalidate(runIDs ...string) {
	if len(runIDs) == 0 {
		c.entries.Clear()
		return
	}
	for _, id := range runIDs {
		c.entries.Delete(id)
	}
}

// Size returns the number of unexpired entries.
func (c *ReportCache) Size() int { return c.entries.Size() }

// RunIDs returns the cached run IDs in sorted order.
func (c *ReportCache) RunIDs() []string { return c.entries.Keys() }

// Sweep evicts expired entries and returns how many were removed.
func (c *ReportCache) Sweep() int { return c.entries.Sweep() }
