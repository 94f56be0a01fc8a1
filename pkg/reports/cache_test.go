package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestSetGetWithoutTTL(t *testing.T) {
	clk := newClock()
	c := New(WithClock(clk.Now))
	c.Set("run-1", map[string]int{"score": 63})

	e := c.Get("run-1")
	require.NotNil(t, e)
	assert.Equal(t, "run-1", e.RunID)
	assert.Equal(t, map[string]int{"score": 63}, e.Data)
	assert.Equal(t, clk.now, e.CachedAt)
	assert.Nil(t, e.ExpiresAt)

	clk.Advance(365 * 24 * time.Hour)
	assert.True(t, c.IsValid("run-1"))
}

func TestSetWithTTLMs(t *testing.T) {
	clk := newClock()
	c := New(WithClock(clk.Now))
	c.Set("run-1", "report", WithTTLMs(1500))

	e := c.Get("run-1")
	require.NotNil(t, e)
	require.NotNil(t, e.ExpiresAt)
	assert.Equal(t, clk.now.Add(1500*time.Millisecond), *e.ExpiresAt)

	clk.Advance(1499 * time.Millisecond)
	assert.True(t, c.IsValid("run-1"))
	clk.Advance(time.Millisecond)
	assert.False(t, c.IsValid("run-1"))
	assert.Nil(t, c.Get("run-1"))
}

func TestNegativeTTLIsAlreadyExpired(t *testing.T) {
	c := New()
	c.Set("run-1", "report", WithTTLMs(-1000))
	assert.Nil(t, c.Get("run-1"))
	assert.False(t, c.IsValid("run-1"))
}

func TestZeroTTLExpiresImmediately(t *testing.T) {
	c := New()
	c.Set("run-1", "report", WithTTL(0))
	assert.Nil(t, c.Get("run-1"))
}

func TestRealClockExpiry(t *testing.T) {
	c := New()
	c.Set("run-1", "report", WithTTLMs(50))
	require.NotNil(t, c.Get("run-1"))

	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, c.Get("run-1"))
}

func TestEmptyRunID(t *testing.T) {
	c := New()
	c.Set("", "report")
	assert.Nil(t, c.Get(""))
	assert.False(t, c.IsValid(""))
	assert.Equal(t, 0, c.Size())
}

func TestInvalidateSome(t *testing.T) {
	c := New()
	for _, id := range []string{"a", "b", "c"} {
		c.Set(id, id)
	}

	c.Invalidate("a", "c", "unknown")
	assert.Nil(t, c.Get("a"))
	assert.NotNil(t, c.Get("b"))
	assert.Nil(t, c.Get("c"))
	assert.Equal(t, []string{"b"}, c.RunIDs())
}

func TestInvalidateAll(t *testing.T) {
	c := New()
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		c.Set(id, id, WithTTL(time.Hour))
	}
	require.Equal(t, len(ids), c.Size())

	c.Invalidate()
	for _, id := range ids {
		assert.Nilf(t, c.Get(id), "run %s survived Invalidate()", id)
	}
	assert.Equal(t, 0, c.Size())
}

func TestOverwriteReplacesExpiry(t *testing.T) {
	clk := newClock()
	c := New(WithClock(clk.Now))
	c.Set("run-1", "old", WithTTL(time.Second))
	c.Set("run-1", "new")

	clk.Advance(time.Minute)
	e := c.Get("run-1")
	require.NotNil(t, e)
	assert.Equal(t, "new", e.Data)
}

func TestSweep(t *testing.T) {
	clk := newClock()
	c := New(WithClock(clk.Now))
	c.Set("short", 1, WithTTL(time.Second))
	c.Set("long", 2, WithTTL(time.Hour))

	clk.Advance(time.Minute)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, []string{"long"}, c.RunIDs())
}
