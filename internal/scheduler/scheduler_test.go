package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/gapradar/internal/store"
	"github.com/elonfeng/gapradar/pkg/demand"
	"github.com/elonfeng/gapradar/pkg/scoring"
	"github.com/elonfeng/gapradar/pkg/source"
)

type countingSource struct {
	calls atomic.Int32
	err   error
}

func (c *countingSource) Name() source.SourceType { return source.SourceHackerNews }

func (c *countingSource) Collect(ctx context.Context, q source.Query) ([]source.Item, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []source.Item{{
		ID: "hackernews:1", Source: source.SourceHackerNews,
		Title: "Ask HN: why is " + q.Niche + " so hard?", Comments: 40,
	}}, nil
}

func newEngine(t *testing.T, src source.Source, opts ...demand.Option) *demand.Engine {
	t.Helper()
	agg, err := scoring.NewAggregator(scoring.DefaultWeights(), scoring.MissingZero)
	require.NoError(t, err)
	return demand.NewEngine(agg, append([]demand.Option{demand.WithSources(src)}, opts...)...)
}

func TestNewDefaults(t *testing.T) {
	s := New(newEngine(t, &countingSource{}), nil, nil, Config{})
	assert.Equal(t, 5*time.Minute, s.cfg.SweepInterval)
	assert.Equal(t, time.Hour, s.cfg.PruneInterval)
	assert.Equal(t, 30*24*time.Hour, s.cfg.Retention)
	assert.Equal(t, 6*time.Hour, s.cfg.WatchInterval)
}

func TestWatchRefreshesEveryNiche(t *testing.T) {
	src := &countingSource{}
	s := New(newEngine(t, src), nil, nil, Config{Watchlist: []string{"sourdough", "kombucha"}})

	assert.Equal(t, 2, s.watch(context.Background()))
	assert.Equal(t, 2, s.watch(context.Background()))
	// Refresh bypasses the niche cache.
	assert.EqualValues(t, 4, src.calls.Load())
}

func TestWatchSkipsFailures(t *testing.T) {
	src := &countingSource{err: errors.New("down")}
	s := New(newEngine(t, src), nil, nil, Config{Watchlist: []string{"sourdough"}})
	assert.Equal(t, 0, s.watch(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, s.watch(ctx))
}

func TestPrune(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, st.SaveRun(ctx, &store.Run{ID: "old", Niche: "a", NicheKey: "a", CreatedAt: now.Add(-48 * time.Hour)}, nil))
	require.NoError(t, st.SaveRun(ctx, &store.Run{ID: "new", Niche: "b", NicheKey: "b", CreatedAt: now.Add(-time.Hour)}, nil))

	s := New(newEngine(t, &countingSource{}), st, nil, Config{Retention: 24 * time.Hour})
	s.now = func() time.Time { return now }

	assert.EqualValues(t, 1, s.prune(ctx))
	_, err = st.GetRun(ctx, "old")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetRun(ctx, "new")
	assert.NoError(t, err)

	assert.EqualValues(t, 0, New(newEngine(t, &countingSource{}), nil, nil, Config{}).prune(ctx))
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	eng := newEngine(t, &countingSource{},
		demand.WithClock(func() time.Time { return clock() }),
		demand.WithReportTTL(time.Minute),
		demand.WithSignalTTL(time.Minute),
	)
	_, err := eng.Analyze(context.Background(), demand.Request{Niche: "sourdough"})
	require.NoError(t, err)

	s := New(eng, nil, nil, Config{})
	assert.Equal(t, 0, s.sweep())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, s.sweep())
	assert.Equal(t, 0, eng.CacheSize())
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &countingSource{}
	s := New(newEngine(t, src), nil, nil, Config{
		SweepInterval: time.Millisecond,
		Watchlist:     []string{"sourdough"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
