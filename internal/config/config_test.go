package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/gapradar/pkg/scoring"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GAPRADAR_DB_PATH", "GAPRADAR_LOG_LEVEL", "REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET",
		"REDDIT_USER_AGENT", "YOUTUBE_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gapradar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./gapradar.db", cfg.Database.Path)
	assert.Equal(t, scoring.DefaultWeights(), cfg.Scoring.ScoringWeights())
	assert.Equal(t, scoring.MissingZero, cfg.Scoring.Policy())
	assert.Equal(t, 24*time.Hour, cfg.Cache.ParseReportTTL())
	assert.Equal(t, time.Hour, cfg.Cache.ParseSignalTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.Schedule.ParseRetention())
	assert.False(t, cfg.LLM.Enabled)
	assert.True(t, cfg.Sources.Reddit.Enabled)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  path: /tmp/radar.db
scoring:
  weights: {pain: 0.4, spend: 0.1, search: 0.2, content: 0.2, app: 0.1}
  missing_policy: fail
cache:
  report_ttl: 2h
watchlist:
  - sourdough baking
  - freelance invoicing
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/radar.db", cfg.Database.Path)
	assert.Equal(t, 0.4, cfg.Scoring.ScoringWeights().Pain)
	assert.Equal(t, scoring.MissingFail, cfg.Scoring.Policy())
	assert.Equal(t, 2*time.Hour, cfg.Cache.ParseReportTTL())
	assert.Equal(t, time.Hour, cfg.Cache.ParseSignalTTL(), "unset keys keep defaults")
	assert.Equal(t, []string{"sourdough baking", "freelance invoicing"}, cfg.Watchlist)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "database: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "scoring:\n  weights: {pain: 0.5, spend: 0.5, search: 0.5, content: 0, app: 0}\n"))
	assert.ErrorIs(t, err, scoring.ErrInvalidWeights)

	_, err = Load(writeConfig(t, "scoring:\n  missing_policy: guess\n"))
	assert.ErrorContains(t, err, "missing_policy")

	_, err = Load(writeConfig(t, "llm:\n  enabled: true\n  provider: llama\n"))
	assert.ErrorContains(t, err, "llm provider")
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GAPRADAR_DB_PATH", "/data/g.db")
	t.Setenv("GAPRADAR_LOG_LEVEL", "debug")
	t.Setenv("REDDIT_USER_AGENT", "gapradar-test/0.1")
	t.Setenv("YOUTUBE_API_KEY", "yt-key")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/g.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "gapradar-test/0.1", cfg.Sources.Reddit.UserAgent)
	assert.True(t, cfg.Sources.YouTube.Enabled)
	assert.Equal(t, "yt-key", cfg.Sources.YouTube.APIKey)
	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLM.Model)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"7d", 7 * 24 * time.Hour},
		{"0d", 0},
		{"xd", time.Minute},
		{"-5m", time.Minute},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, parseDuration(tt.in, time.Minute), "parseDuration(%q)", tt.in)
	}
}
