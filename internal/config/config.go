package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/gapradar/pkg/scoring"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig `yaml:"database"`
	Log       LogConfig      `yaml:"log"`
	Schedule  ScheduleConfig `yaml:"schedule"`
	Sources   SourcesConfig  `yaml:"sources"`
	Scoring   ScoringConfig  `yaml:"scoring"`
	Cache     CacheConfig    `yaml:"cache"`
	Server    ServerConfig   `yaml:"server"`
	LLM       LLMConfig      `yaml:"llm"`
	Filter    FilterConfig   `yaml:"filter"`
	Watchlist []string       `yaml:"watchlist"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string   `yaml:"level"`  // debug, info, warn, error
	Format      string   `yaml:"format"` // json or console
	OutputPaths []string `yaml:"output_paths"`
}

// ScheduleConfig configures the background jobs of `gapradar run`.
type ScheduleConfig struct {
	SweepInterval string `yaml:"sweep_interval"`
	PruneInterval string `yaml:"prune_interval"`
	Retention     string `yaml:"retention"`
	WatchInterval string `yaml:"watch_interval"`
}

// ParseSweepInterval returns the cache sweep interval as time.Duration.
func (s ScheduleConfig) ParseSweepInterval() time.Duration {
	return parseDuration(s.SweepInterval, 5*time.Minute)
}

// ParsePruneInterval returns the run pruning interval as time.Duration.
func (s ScheduleConfig) ParsePruneInterval() time.Duration {
	return parseDuration(s.PruneInterval, time.Hour)
}

// ParseRetention returns how long runs are kept.
func (s ScheduleConfig) ParseRetention() time.Duration {
	return parseDuration(s.Retention, 30*24*time.Hour)
}

// ParseWatchInterval returns the watchlist re-analysis interval.
func (s ScheduleConfig) ParseWatchInterval() time.Duration {
	return parseDuration(s.WatchInterval, 6*time.Hour)
}

// parseDuration accepts Go durations plus a "d" suffix for days. Empty,
// malformed or negative values fall back to def.
func parseDuration(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return def
		}
		return time.Duration(n) * 24 * time.Hour
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// SourcesConfig holds configuration for all data sources.
type SourcesConfig struct {
	Limit      int              `yaml:"limit"` // items per source per analysis
	Reddit     RedditConfig     `yaml:"reddit"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
	YouTube    YouTubeConfig    `yaml:"youtube"`
	RSS        RSSConfig        `yaml:"rss"`
}

// RedditConfig for the Reddit collector.
type RedditConfig struct {
	Enabled           bool     `yaml:"enabled"`
	ClientID          string   `yaml:"client_id"`
	ClientSecret      string   `yaml:"client_secret"`
	UserAgent         string   `yaml:"user_agent"`
	Subreddits        []string `yaml:"subreddits"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	// DiscoverSubreddits, with no subreddits listed, searches the top N
	// communities discovered for each niche instead of all of Reddit.
	DiscoverSubreddits int    `yaml:"discover_subreddits"`
	BaseURL            string `yaml:"base_url"`
}

// HackerNewsConfig for the Hacker News collector.
type HackerNewsConfig struct {
	Enabled          bool `yaml:"enabled"`
	CommentsPerStory int  `yaml:"comments_per_story"`
}

// YouTubeConfig for the YouTube collector.
type YouTubeConfig struct {
	Enabled       bool   `yaml:"enabled"`
	APIKey        string `yaml:"api_key"`
	CommentVideos int    `yaml:"comment_videos"`
}

// RSSConfig for the RSS/Atom collector.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	MaxAge  string     `yaml:"max_age"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// ParseMaxAge returns the RSS entry age limit; zero keeps everything.
func (r RSSConfig) ParseMaxAge() time.Duration {
	return parseDuration(r.MaxAge, 0)
}

// FeedItem is a single RSS feed entry. URL may contain a {niche} placeholder.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ScoringConfig configures the unified demand aggregator.
type ScoringConfig struct {
	Weights       WeightsConfig `yaml:"weights"`
	MissingPolicy string        `yaml:"missing_policy"` // "fail" or "zero"
}

// WeightsConfig mirrors scoring.Weights for YAML.
type WeightsConfig struct {
	Pain    float64 `yaml:"pain"`
	Spend   float64 `yaml:"spend"`
	Search  float64 `yaml:"search"`
	Content float64 `yaml:"content"`
	App     float64 `yaml:"app"`
}

// ScoringWeights converts the configured weights.
func (s ScoringConfig) ScoringWeights() scoring.Weights {
	return scoring.Weights{
		Pain:    s.Weights.Pain,
		Spend:   s.Weights.Spend,
		Search:  s.Weights.Search,
		Content: s.Weights.Content,
		App:     s.Weights.App,
	}
}

// Policy returns the configured missing-signal policy.
func (s ScoringConfig) Policy() scoring.MissingPolicy {
	return scoring.ParseMissingPolicy(s.MissingPolicy)
}

// CacheConfig configures the in-process caches.
type CacheConfig struct {
	ReportTTL string `yaml:"report_ttl"` // run-keyed report cache
	SignalTTL string `yaml:"signal_ttl"` // niche-keyed analysis cache
}

// ParseReportTTL returns the report cache TTL.
func (c CacheConfig) ParseReportTTL() time.Duration {
	return parseDuration(c.ReportTTL, 24*time.Hour)
}

// ParseSignalTTL returns the niche analysis cache TTL.
func (c CacheConfig) ParseSignalTTL() time.Duration {
	return parseDuration(c.SignalTTL, time.Hour)
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LLMConfig configures the optional LLM gap summarizer.
type LLMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // "openai" or "anthropic"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"` // custom endpoint (optional)
}

// FilterConfig configures keyword filtering of collected items.
type FilterConfig struct {
	Enabled         bool     `yaml:"enabled"`
	ExtraKeywords   []string `yaml:"extra_keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	w := scoring.DefaultWeights()
	return &Config{
		Database: DatabaseConfig{Path: "./gapradar.db"},
		Log:      LogConfig{Level: "info", Format: "console"},
		Schedule: ScheduleConfig{
			SweepInterval: "5m",
			PruneInterval: "1h",
			Retention:     "30d",
			WatchInterval: "6h",
		},
		Sources: SourcesConfig{
			Limit:      50,
			Reddit:     RedditConfig{Enabled: true, RequestsPerMinute: 30},
			HackerNews: HackerNewsConfig{Enabled: true, CommentsPerStory: 5},
			YouTube:    YouTubeConfig{Enabled: false, CommentVideos: 5},
			RSS:        RSSConfig{
				Enabled: false,
				MaxAge:  "30d",
				Feeds: []FeedItem{
					{Name: "YouTube search", URL: "https://www.youtube.com/feeds/videos.xml?search_query={niche}"},
				},
			},
		},
		Scoring: ScoringConfig{
			Weights: WeightsConfig{
				Pain:    w.Pain,
				Spend:   w.Spend,
				Search:  w.Search,
				Content: w.Content,
				App:     w.App,
			},
			MissingPolicy: "zero",
		},
		Cache:  CacheConfig{ReportTTL: "24h", SignalTTL: "1h"},
		Server: ServerConfig{Port: 8080},
		LLM:    LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
	}
}

// Load reads configuration from a YAML file, applies env var overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if err := c.Scoring.ScoringWeights().Validate(); err != nil {
		return fmt.Errorf("scoring weights: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Scoring.MissingPolicy)) {
	case "", "fail", "zero":
	default:
		return fmt.Errorf("scoring missing_policy %q: want fail or zero", c.Scoring.MissingPolicy)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.LLM.Enabled {
		switch c.LLM.Provider {
		case "openai", "anthropic":
		default:
			return fmt.Errorf("llm provider %q: want openai or anthropic", c.LLM.Provider)
		}
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GAPRADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GAPRADAR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		cfg.Sources.Reddit.ClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		cfg.Sources.Reddit.ClientSecret = v
	}
	if v := os.Getenv("REDDIT_USER_AGENT"); v != "" {
		cfg.Sources.Reddit.UserAgent = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Sources.YouTube.APIKey = v
		cfg.Sources.YouTube.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Enabled = true
		cfg.LLM.Provider = "anthropic"
		if cfg.LLM.Model == "" || strings.HasPrefix(cfg.LLM.Model, "gpt-") {
			cfg.LLM.Model = "claude-sonnet-4-20250514"
		}
	}
}
