package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewFromCore(core), logs
}

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := New(Config{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}

func TestNewBadOutputPath(t *testing.T) {
	_, err := New(Config{OutputPaths: []string{"/nonexistent-dir/x/y/z.log"}})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestFieldsAreTyped(t *testing.T) {
	l, logs := newObserved(zapcore.DebugLevel)
	l.Info("scored",
		String("niche", "crm for realtors"),
		Int("score", 63),
		Float64("pain", 80.5),
		Bool("cached", false),
		Duration("took", 15*time.Millisecond),
		Strings("missing", []string{"app"}),
		Err(errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "crm for realtors", ctx["niche"])
	assert.EqualValues(t, 63, ctx["score"])
	assert.Equal(t, 80.5, ctx["pain"])
	assert.Equal(t, false, ctx["cached"])
	assert.Equal(t, 15*time.Millisecond, ctx["took"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestWithAndNamed(t *testing.T) {
	l, logs := newObserved(zapcore.DebugLevel)
	child := l.Named("server").With(String("component", "http"))
	child.Warn("slow request")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "server", entry.LoggerName)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "http", entry.ContextMap()["component"])
}

func TestLevelFiltering(t *testing.T) {
	l, logs := newObserved(zapcore.WarnLevel)
	l.Debug("hidden")
	l.Info("hidden")
	l.Error("shown")
	assert.Equal(t, 1, logs.FilterMessage("shown").Len())
	assert.Equal(t, 0, logs.FilterMessage("hidden").Len())
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Debug("x")
	l.Info("x", String("k", "v"))
	l.Warn("x")
	l.Error("x", Err(nil))
	assert.NotNil(t, l.With(Int("n", 1)).Named("y"))
	assert.NoError(t, l.Sync())
}
