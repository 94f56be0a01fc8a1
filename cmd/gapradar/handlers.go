package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/gapradar/internal/config"
	"github.com/elonfeng/gapradar/internal/logging"
	"github.com/elonfeng/gapradar/internal/metrics"
	"github.com/elonfeng/gapradar/internal/scheduler"
	"github.com/elonfeng/gapradar/internal/store"
	"github.com/elonfeng/gapradar/pkg/demand"
	"github.com/elonfeng/gapradar/pkg/scoring"
	"github.com/elonfeng/gapradar/pkg/server"
	"github.com/elonfeng/gapradar/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app bundles everything a command needs. Close releases the store and
// flushes the logger.
type app struct {
	cfg     *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	store   store.Store
	sources []source.Source
	engine  *demand.Engine
}

func newApp(withStore bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(true),
		sources: buildSources(cfg, logger),
	}
	if withStore {
		db, err := store.New(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = db
	}

	a.engine, err = buildEngine(cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}

func buildEngine(cfg *config.Config, a *app) (*demand.Engine, error) {
	agg, err := scoring.NewAggregator(cfg.Scoring.ScoringWeights(), cfg.Scoring.Policy())
	if err != nil {
		return nil, fmt.Errorf("scoring weights: %w", err)
	}

	opts := []demand.Option{
		demand.WithSources(a.sources...),
		demand.WithLogger(a.logger),
		demand.WithMetrics(a.metrics),
		demand.WithReportTTL(cfg.Cache.ParseReportTTL()),
		demand.WithSignalTTL(cfg.Cache.ParseSignalTTL()),
		demand.WithLimit(cfg.Sources.Limit),
	}
	if a.store != nil {
		opts = append(opts, demand.WithStore(a.store))
	}
	if cfg.Filter.Enabled {
		opts = append(opts, demand.WithFilter(cfg.Filter.ExtraKeywords, cfg.Filter.ExcludeKeywords))
	}
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		opts = append(opts, demand.WithSummarizer(demand.NewGapSummarizer(
			cfg.LLM.Provider,
			cfg.LLM.Model,
			cfg.LLM.APIKey,
			cfg.LLM.BaseURL,
		)))
		a.logger.Info("gap summarizer enabled",
			logging.String("provider", cfg.LLM.Provider),
			logging.String("model", cfg.LLM.Model))
	}
	return demand.NewEngine(agg, opts...), nil
}

func redditConfig(cfg *config.Config) source.RedditConfig {
	rc := cfg.Sources.Reddit
	return source.RedditConfig{
		ClientID:          rc.ClientID,
		ClientSecret:      rc.ClientSecret,
		UserAgent:         rc.UserAgent,
		Subreddits:        rc.Subreddits,
		RequestsPerMinute: rc.RequestsPerMinute,
		DiscoverLimit:     rc.DiscoverSubreddits,
		BaseURL:           rc.BaseURL,
	}
}

func buildSources(cfg *config.Config, logger logging.Logger) []source.Source {
	var sources []source.Source

	if cfg.Sources.Reddit.Enabled {
		sources = append(sources, source.NewReddit(redditConfig(cfg)))
	}
	if cfg.Sources.HackerNews.Enabled {
		sources = append(sources, source.NewHackerNews("", cfg.Sources.HackerNews.CommentsPerStory))
	}
	if cfg.Sources.YouTube.Enabled {
		if cfg.Sources.YouTube.APIKey == "" {
			logger.Warn("youtube enabled without an api key; set YOUTUBE_API_KEY")
		}
		sources = append(sources, source.NewYouTube(cfg.Sources.YouTube.APIKey, "", cfg.Sources.YouTube.CommentVideos))
	}
	if cfg.Sources.RSS.Enabled {
		feeds := make([]source.RSSFeed, len(cfg.Sources.RSS.Feeds))
		for i, f := range cfg.Sources.RSS.Feeds {
			feeds[i] = source.RSSFeed{Name: f.Name, URL: f.URL}
		}
		sources = append(sources, source.NewRSS(feeds, cfg.Sources.RSS.ParseMaxAge()))
	}

	return sources
}

func runScore(cmd *cobra.Command, file string, jsonOutput bool) error {
	var r io.Reader = cmd.InOrStdin()
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	var payload scoring.Payload
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.Score(cmd.Context(), payload)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return encodeJSON(out, res)
	}
	fmt.Fprintf(out, "unified score: %d/100\n\n", res.UnifiedScore)
	return printBreakdown(out, res.Breakdown)
}

func runAnalyze(cmd *cobra.Command, args, sources []string, limit int, jsonOutput bool) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	req := demand.Request{
		Niche: strings.Join(args, " "),
		Limit: limit,
	}
	for _, s := range sources {
		st, ok := parseSourceType(s)
		if !ok {
			return fmt.Errorf("unknown source %q", s)
		}
		req.Sources = append(req.Sources, st)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rep, err := a.engine.Analyze(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return encodeJSON(out, rep)
	}
	return printReport(out, rep)
}

func runRuns(cmd *cobra.Command, niche string, minScore, limit int, jsonOutput bool) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := store.RunListOpts{MinScore: minScore, Limit: limit}
	if niche != "" {
		opts.NicheKey = demand.NicheKey(niche)
	}
	runs, err := a.engine.Runs(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return encodeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found (try: gapradar analyze <niche>)")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tITEMS\tNICHE\tRUN\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
			r.UnifiedScore, r.ItemCount, r.Niche, r.ID, r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runNicheCounts(cmd *cobra.Command, jsonOutput bool) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	counts, err := a.engine.NicheCounts(cmd.Context())
	if err != nil {
		return fmt.Errorf("count runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return encodeJSON(out, counts)
	}
	if len(counts) == 0 {
		fmt.Fprintln(out, "no runs found (try: gapradar analyze <niche>)")
		return nil
	}

	niches := make([]string, 0, len(counts))
	for k := range counts {
		niches = append(niches, k)
	}
	sort.Slice(niches, func(i, j int) bool {
		if counts[niches[i]] != counts[niches[j]] {
			return counts[niches[i]] > counts[niches[j]]
		}
		return niches[i] < niches[j]
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUNS\tNICHE")
	for _, n := range niches {
		fmt.Fprintf(w, "%d\t%s\n", counts[n], n)
	}
	return w.Flush()
}

// runDiscover lists subreddits related to a niche. It works whether or not
// the Reddit collector is enabled.
func runDiscover(cmd *cobra.Command, args []string, limit int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	niche := strings.Join(args, " ")

	subs, err := source.NewReddit(redditConfig(cfg)).DiscoverSubreddits(cmd.Context(), niche, limit)
	if err != nil {
		return fmt.Errorf("discover subreddits: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if subs == nil {
			subs = []source.Subreddit{}
		}
		return encodeJSON(out, subs)
	}
	if len(subs) == 0 {
		fmt.Fprintf(out, "no subreddits found for %q\n", niche)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUBSCRIBERS\tSUBREDDIT\tDESCRIPTION")
	for _, s := range subs {
		fmt.Fprintf(w, "%d\tr/%s\t%s\n", s.Subscribers, s.Name, oneLine(s.Description, 60))
	}
	return w.Flush()
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}

// runServe starts the HTTP API. With daemon set it also runs the scheduler.
func runServe(port int, daemon bool) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	srv := server.New(a.engine, a.sources, a.metrics, a.logger, port)
	g.Go(func() error { return srv.ListenAndServe(ctx) })

	if daemon {
		sched := scheduler.New(a.engine, a.store, a.logger, scheduler.Config{
			SweepInterval: a.cfg.Schedule.ParseSweepInterval(),
			PruneInterval: a.cfg.Schedule.ParsePruneInterval(),
			Retention:     a.cfg.Schedule.ParseRetention(),
			WatchInterval: a.cfg.Schedule.ParseWatchInterval(),
			Watchlist:     a.cfg.Watchlist,
		})
		g.Go(func() error {
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	err = g.Wait()
	a.logger.Info("shut down")
	return err
}

func printReport(w io.Writer, rep demand.Report) error {
	fmt.Fprintf(w, "niche:   %s\n", rep.Niche)
	fmt.Fprintf(w, "run:     %s\n", rep.RunID)
	fmt.Fprintf(w, "score:   %d/100\n", rep.Result.UnifiedScore)
	fmt.Fprintf(w, "items:   %d (took %s)\n\n", rep.ItemCount, rep.Took.Round(time.Millisecond))

	if err := printBreakdown(w, rep.Result.Breakdown); err != nil {
		return err
	}

	fmt.Fprintln(w)
	for _, s := range rep.Sources {
		if s.Error != "" {
			fmt.Fprintf(w, "  %s: error: %s\n", s.Source, s.Error)
			continue
		}
		fmt.Fprintf(w, "  %s: %d items\n", s.Source, s.Items)
	}

	if rep.ContentGaps != nil && len(rep.ContentGaps.Missing) > 0 {
		fmt.Fprintf(w, "\nuncovered formats: %s\n", strings.Join(rep.ContentGaps.Missing, ", "))
	}
	if len(rep.Themes) > 0 {
		fmt.Fprintf(w, "themes: %s\n", strings.Join(rep.Themes, ", "))
	}
	if len(rep.PainClusters) > 0 {
		fmt.Fprintln(w, "\ntop complaints:")
		for _, c := range rep.PainClusters {
			fmt.Fprintf(w, "  (x%d) %s\n", c.Count, c.Label)
		}
	}
	if len(rep.Gaps) > 0 {
		fmt.Fprintln(w, "\ngaps:")
		for _, g := range rep.Gaps {
			fmt.Fprintf(w, "  - %s: %s\n", g.Title, g.Reason)
		}
	}
	return nil
}

func printBreakdown(w io.Writer, b scoring.Breakdown) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNAL\tVALUE\tWEIGHT\tCONTRIBUTION")
	for _, k := range scoring.AllKinds() {
		s := b.Get(k)
		fmt.Fprintf(tw, "%s\t%.1f\t%.2f\t%.1f\n", k, s.Value, s.Weight, s.Contribution)
	}
	return tw.Flush()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseSourceType(s string) (source.SourceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reddit":
		return source.SourceReddit, true
	case "hn", "hackernews":
		return source.SourceHackerNews, true
	case "yt", "youtube":
		return source.SourceYouTube, true
	case "rss":
		return source.SourceRSS, true
	}
	return "", false
}
