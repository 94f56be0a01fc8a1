package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingObserver struct {
	hits, misses, evicted atomic.Int64
}

func (o *countingObserver) Hit(string)            { o.hits.Add(1) }
func (o *countingObserver) Miss(string)           { o.misses.Add(1) }
func (o *countingObserver) Evict(_ string, n int) { o.evicted.Add(int64(n)) }

func TestSetGet(t *testing.T) {
	c := New[string]()
	c.Set("a", "alpha")

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "again")
	v, _ = c.Get("a")
	assert.Equal(t, "again", v)
}

func TestTTLExpiryRealClock(t *testing.T) {
	c := New[int]()
	c.Set("k", 42, WithTTL(50*time.Millisecond))

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	time.Sleep(100 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.False(t, c.Has("k"))
}

func TestExpiryBoundary(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now))
	c.Set("k", 1, WithTTL(time.Second))

	clk.Advance(time.Second - time.Nanosecond)
	assert.True(t, c.Has("k"))

	clk.Advance(time.Nanosecond)
	assert.False(t, c.Has("k"), "entry must be expired at exactly storedAt+ttl")
}

func TestDefaultTTLAndOverride(t *testing.T) {
	clk := newFakeClock()
	c := New[string](WithClock(clk.Now), WithDefaultTTL(time.Minute))

	c.Set("default", "d")
	c.Set("long", "l", WithTTL(time.Hour))
	c.Set("forever", "f", WithTTL(0))
	c.Set("stale", "s", WithTTL(-time.Second))

	assert.False(t, c.Has("stale"))

	clk.Advance(2 * time.Minute)
	assert.False(t, c.Has("default"))
	assert.True(t, c.Has("long"))
	assert.True(t, c.Has("forever"))

	clk.Advance(24 * time.Hour)
	assert.False(t, c.Has("long"))
	assert.True(t, c.Has("forever"))
}

func TestNoDefaultTTLNeverExpires(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now))
	c.Set("k", 1)
	clk.Advance(10 * 365 * 24 * time.Hour)
	assert.True(t, c.Has("k"))
}

func TestDeleteClearSize(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now))
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3, WithTTL(time.Second))
	assert.Equal(t, 3, c.Size())

	clk.Advance(2 * time.Second)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, []string{"a", "b"}, c.Keys())

	c.Delete("a")
	c.Delete("does-not-exist")
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
	_, ok := c.Get("b")
	assert.False(t, ok)
}

func TestSweep(t *testing.T) {
	clk := newFakeClock()
	obs := &countingObserver{}
	c := New[int](WithClock(clk.Now), WithObserver(obs), WithDefaultTTL(time.Second))
	for _, k := range []string{"a", "b", "c"} {
		c.Set(k, 1)
	}
	c.Set("keep", 1, WithTTL(time.Hour))

	clk.Advance(time.Minute)
	assert.Equal(t, 3, c.Sweep())
	assert.Equal(t, 0, c.Sweep())
	assert.EqualValues(t, 3, obs.evicted.Load())
	assert.Equal(t, 1, c.Size())
}

func TestGetOrSetCallsFactoryOncePerMiss(t *testing.T) {
	c := New[int]()
	calls := 0
	factory := func() int {
		calls++
		return 7
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, 7, c.GetOrSet("k", factory))
	}
	assert.Equal(t, 1, calls)

	c.Set("hit", 1)
	assert.Equal(t, 1, c.GetOrSet("hit", factory))
	assert.Equal(t, 1, calls)
}

func TestGetOrSetUsesDefaultTTL(t *testing.T) {
	clk := newFakeClock()
	c := New[int](WithClock(clk.Now), WithDefaultTTL(time.Minute))
	calls := 0
	factory := func() int { calls++; return calls }

	assert.Equal(t, 1, c.GetOrSet("k", factory))
	clk.Advance(30 * time.Second)
	assert.Equal(t, 1, c.GetOrSet("k", factory))
	clk.Advance(time.Minute)
	assert.Equal(t, 2, c.GetOrSet("k", factory))
}

func TestGetOrSetAsyncHitSkipsFactory(t *testing.T) {
	c := New[string]()
	c.Set("k", "cached")

	v, err := c.GetOrSetAsync(context.Background(), "k", func(context.Context) (string, error) {
		t.Fatal("factory must not run on a hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", v)
}

func TestGetOrSetAsyncMissStores(t *testing.T) {
	c := New[string]()
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		v, err := c.GetOrSetAsync(context.Background(), "k", func(context.Context) (string, error) {
			calls.Add(1)
			return "computed", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "computed", v)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetOrSetAsyncFactoryErrorNotStored(t *testing.T) {
	c := New[string]()
	boom := errors.New("upstream down")

	_, err := c.GetOrSetAsync(context.Background(), "k", func(context.Context) (string, error) {
		return "partial", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Has("k"))

	v, err := c.GetOrSetAsync(context.Background(), "k", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestGetOrSetAsyncDeduplicatesConcurrentMisses(t *testing.T) {
	c := New[int]()
	var calls atomic.Int32
	release := make(chan struct{})

	const workers = 8
	var wg sync.WaitGroup
	results := make([]int, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrSetAsync(context.Background(), "k", func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 99, nil
			})
		}(i)
	}

	// Give every goroutine a chance to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 99, results[i])
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetOrSetAsyncContextCancelled(t *testing.T) {
	c := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrSetAsync(ctx, "k", func(context.Context) (int, error) {
			<-release
			return 1, nil
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("GetOrSetAsync did not return after cancellation")
	}
}

func TestObserverHitMiss(t *testing.T) {
	obs := &countingObserver{}
	c := New[int](WithObserver(obs), WithName("signals"))
	assert.Equal(t, "signals", c.Name())

	c.Get("x")
	c.Set("x", 1)
	c.Get("x")
	c.Get("x")

	assert.EqualValues(t, 2, obs.hits.Load())
	assert.EqualValues(t, 1, obs.misses.Load())
}

func TestPeekSkipsObserver(t *testing.T) {
	clk := newFakeClock()
	obs := &countingObserver{}
	c := New[int](WithClock(clk.Now), WithObserver(obs))
	c.Set("x", 1, WithTTL(time.Second))

	v, ok := c.Peek("x")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Peek("missing")
	assert.False(t, ok)

	clk.Advance(time.Minute)
	_, ok = c.Peek("x")
	assert.False(t, ok)

	assert.Zero(t, obs.hits.Load())
	assert.Zero(t, obs.misses.Load())
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](WithDefaultTTL(time.Millisecond))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := string(rune('a' + (i+j)%8))
				c.Set(key, j)
				c.Get(key)
				c.Has(key)
				if j%50 == 0 {
					c.Size()
				}
			}
		}(i)
	}
	wg.Wait()
}
