package demand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elonfeng/gapradar/internal/logging"
	"github.com/elonfeng/gapradar/internal/metrics"
	"github.com/elonfeng/gapradar/internal/store"
	"github.com/elonfeng/gapradar/pkg/cache"
	"github.com/elonfeng/gapradar/pkg/insight"
	"github.com/elonfeng/gapradar/pkg/reports"
	"github.com/elonfeng/gapradar/pkg/scoring"
	"github.com/elonfeng/gapradar/pkg/source"
)

var (
	// ErrEmptyNiche is returned when a request has no niche.
	ErrEmptyNiche = errors.New("niche is required")
	// ErrReportNotFound is returned when a run is neither cached nor stored.
	ErrReportNotFound = errors.New("report not found")
)

// Recorder receives engine measurements. *metrics.Metrics implements it.
type Recorder interface {
	ObserveScore(unified int, signals map[string]float64)
	ObserveAnalysis(outcome string, took time.Duration)
	SourceError(source string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveScore(int, map[string]float64)  {}
func (nopRecorder) ObserveAnalysis(string, time.Duration) {}
func (nopRecorder) SourceError(string)                    {}

// Engine runs niche analyses: it collects items, derives signals, scores
// them and caches and persists the report.
type Engine struct {
	agg      *scoring.Aggregator
	sources  []source.Source
	store    store.Store    // optional, nil = reports live only in cache
	llm      *GapSummarizer // optional, nil = disabled
	reports  *reports.ReportCache
	analyses *cache.Manager[Report] // keyed by niche

	logger    logging.Logger
	recorder  Recorder
	observer  cache.Observer
	reportTTL time.Duration
	signalTTL time.Duration
	limit     int
	filter    *filterSpec
	now       func() time.Time
	newID     func() string
}

type filterSpec struct {
	extra, exclude []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithSources sets the collectors used by Analyze.
func WithSources(srcs ...source.Source) Option {
	return func(e *Engine) { e.sources = srcs }
}

// WithStore persists every run.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithSummarizer enables LLM gap summaries.
func WithSummarizer(g *GapSummarizer) Option {
	return func(e *Engine) { e.llm = g }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records scores, analyses and cache events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.recorder = m
			e.observer = m
		}
	}
}

// WithReportTTL sets how long reports stay in the run-keyed cache. Zero or
// negative keeps them until invalidated.
func WithReportTTL(d time.Duration) Option {
	return func(e *Engine) { e.reportTTL = d }
}

// WithSignalTTL sets how long a niche's analysis is reused. Zero or negative
// keeps it until invalidated.
func WithSignalTTL(d time.Duration) Option {
	return func(e *Engine) { e.signalTTL = d }
}

// WithLimit sets the default per-source item limit.
func WithLimit(n int) Option {
	return func(e *Engine) { e.limit = n }
}

// WithFilter drops collected items that do not mention the niche, an extra
// keyword, or that mention an excluded keyword.
func WithFilter(extra, exclude []string) Option {
	return func(e *Engine) { e.filter = &filterSpec{extra: extra, exclude: exclude} }
}

// WithClock replaces time.Now for the engine and its caches.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the UUID run ID generator.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) {
		if f != nil {
			e.newID = f
		}
	}
}

// NewEngine creates an engine that scores with agg.
func NewEngine(agg *scoring.Aggregator, opts ...Option) *Engine {
	e := &Engine{
		agg:       agg,
		logger:    logging.NewNop(),
		recorder:  nopRecorder{},
		reportTTL: 24 * time.Hour,
		signalTTL: time.Hour,
		limit:     50,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reports = reports.New(reports.WithClock(e.now), reports.WithObserver(e.observer))
	e.analyses = cache.New[Report](
		cache.WithName("analyses"),
		cache.WithDefaultTTL(e.signalTTL),
		cache.WithClock(e.now),
		cache.WithObserver(e.observer),
	)
	return e
}

// Reports returns the run-keyed report cache.
func (e *Engine) Reports() *reports.ReportCache { return e.reports }

// Aggregator returns the engine's aggregator.
func (e *Engine) Aggregator() *scoring.Aggregator { return e.agg }

// Score scores caller-supplied signals without collecting anything.
func (e *Engine) Score(ctx context.Context, p scoring.Payload) (Scored, error) {
	if err := ctx.Err(); err != nil {
		return Scored{}, err
	}
	res, scores, err := e.agg.AggregateSignals(p.Signals()...)
	if err != nil {
		return Scored{}, fmt.Errorf("score signals: %w", err)
	}
	e.recorder.ObserveScore(res.UnifiedScore, signalValues(scores))
	return Scored{DemandResult: res, Signals: scores}, nil
}

// Analyze runs or reuses an analysis of req.Niche. Analyses of the same
// niche and source set are shared while cached; concurrent requests for one
// niche trigger a single collection.
func (e *Engine) Analyze(ctx context.Context, req Request) (Report, error) {
	niche := strings.TrimSpace(req.Niche)
	if niche == "" {
		return Report{}, ErrEmptyNiche
	}
	req.Niche = niche

	// Caller signals make the result request-specific.
	if req.Refresh || len(req.Signals.Signals()) > 0 {
		rep, err := e.run(ctx, req)
		if err == nil && len(req.Signals.Signals()) == 0 {
			e.analyses.Set(e.cacheKey(req), rep)
		}
		return rep, err
	}

	return e.analyses.GetOrSetAsync(ctx, e.cacheKey(req), func(ctx context.Context) (Report, error) {
		return e.run(ctx, req)
	})
}

func (e *Engine) cacheKey(req Request) string {
	key := NicheKey(req.Niche)
	if len(req.Sources) > 0 {
		names := make([]string, len(req.Sources))
		for i, s := range req.Sources {
			names[i] = string(s)
		}
		slices.Sort(names)
		key += "|" + strings.Join(slices.Compact(names), ",")
	}
	if req.Limit > 0 {
		key += fmt.Sprintf("|%d", req.Limit)
	}
	return key
}

func (e *Engine) selectSources(types []source.SourceType) []source.Source {
	if len(types) == 0 {
		return e.sources
	}
	var out []source.Source
	for _, s := range e.sources {
		if slices.Contains(types, s.Name()) {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) run(ctx context.Context, req Request) (Report, error) {
	start := e.now()
	log := e.logger.With(logging.String("niche", req.Niche))

	rep, items, err := e.analyze(ctx, req, log)
	took := e.now().Sub(start)
	if err != nil {
		e.recorder.ObserveAnalysis("error", took)
		log.Warn("analysis failed", logging.Err(err), logging.Duration("took", took))
		return Report{}, err
	}
	rep.Took = took
	e.recorder.ObserveAnalysis("ok", took)
	e.recorder.ObserveScore(rep.Result.UnifiedScore, signalValues(rep.Signals))

	if e.reportTTL > 0 {
		e.reports.Set(rep.RunID, rep, reports.WithTTL(e.reportTTL))
	} else {
		e.reports.Set(rep.RunID, rep)
	}
	e.persist(ctx, rep, items, log)

	log.Info("analysis complete",
		logging.String("run_id", rep.RunID),
		logging.Int("unified_score", rep.Result.UnifiedScore),
		logging.Int("items", rep.ItemCount),
		logging.Duration("took", took),
	)
	return rep, nil
}

func (e *Engine) analyze(ctx context.Context, req Request, log logging.Logger) (Report, []source.Item, error) {
	rep := Report{
		RunID:     e.newID(),
		Niche:     req.Niche,
		CreatedAt: e.now().UTC(),
	}
	limit := req.Limit
	if limit <= 0 {
		limit = e.limit
	}

	srcs := e.selectSources(req.Sources)
	results, collectErr := source.CollectAll(ctx, source.Query{Niche: req.Niche, Limit: limit}, srcs...)
	if err := ctx.Err(); err != nil {
		return Report{}, nil, err
	}

	var items []source.Item
	failed := 0
	for _, r := range results {
		stat := SourceStat{Source: r.Source, Items: len(r.Items)}
		if r.Err != nil {
			stat.Error = r.Err.Error()
			failed++
			e.recorder.SourceError(string(r.Source))
			log.Warn("collect failed", logging.String("source", string(r.Source)), logging.Err(r.Err))
		}
		rep.Sources = append(rep.Sources, stat)
		items = append(items, r.Items...)
	}
	if len(srcs) > 0 && failed == len(srcs) && len(req.Signals.Signals()) == 0 {
		return Report{}, nil, fmt.Errorf("collect %q: %w", req.Niche, collectErr)
	}

	if e.filter != nil {
		items = source.NewFilter(req.Niche, e.filter.extra, e.filter.exclude).Apply(items)
	}
	rep.ItemCount = len(items)

	posts, videos := splitItems(items)
	payload := req.Signals

	pain := insight.BuildPainSignal(posts)
	if payload.Pain == nil && len(posts) > 0 {
		payload.Pain = &pain.Signal
	}
	if payload.Content == nil && len(videos) > 0 {
		content := insight.BuildContentSignal(videos)
		payload.Content = &content
	}
	if payload.Content != nil {
		gaps := scoring.IdentifyContentGaps(payload.Content.Videos)
		rep.ContentGaps = &gaps
	}

	res, scores, err := e.agg.AggregateSignals(payload.Signals()...)
	if err != nil {
		return Report{}, nil, fmt.Errorf("score %q: %w", req.Niche, err)
	}
	rep.Result = res
	rep.Signals = scores

	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	rep.Themes = insight.CommonThemes(titles, 10)
	if len(posts) > 0 {
		rep.Intents = pain.Intents
		rep.PainClusters = insight.ClusterSentences(pain.Insights.PainPoints, 3)
		rep.Opportunities = insight.Opportunities(pain.Insights)
	}

	if e.llm != nil {
		gaps, err := e.llm.Summarize(ctx, &rep)
		if err != nil {
			log.Warn("gap summary failed", logging.Err(err))
		} else {
			rep.Gaps = gaps
		}
	}
	return rep, items, nil
}

// splitItems separates discussion posts from videos. RSS entries linking to
// YouTube count as videos.
func splitItems(items []source.Item) (posts, videos []source.Item) {
	for _, it := range items {
		switch {
		case it.Source == source.SourceYouTube:
			videos = append(videos, it)
		case it.Source == source.SourceRSS && strings.Contains(it.URL, "youtube.com/watch"):
			videos = append(videos, it)
		default:
			posts = append(posts, it)
		}
	}
	return posts, videos
}

func (e *Engine) persist(ctx context.Context, rep Report, items []source.Item, log logging.Logger) {
	if e.store == nil {
		return
	}
	data, err := json.Marshal(rep)
	if err != nil {
		log.Error("encode report", logging.Err(err))
		return
	}
	run := &store.Run{
		ID:           rep.RunID,
		Niche:        rep.Niche,
		NicheKey:     NicheKey(rep.Niche),
		UnifiedScore: rep.Result.UnifiedScore,
		Report:       data,
		CreatedAt:    rep.CreatedAt,
	}
	if err := e.store.SaveRun(ctx, run, items); err != nil {
		log.Error("save run", logging.String("run_id", rep.RunID), logging.Err(err))
	}
}

// Report returns a run's report from the cache, falling back to the store.
// A report loaded from the store is cached again.
func (e *Engine) Report(ctx context.Context, runID string) (Report, error) {
	if entry := e.reports.Get(runID); entry != nil {
		if rep, ok := entry.Data.(Report); ok {
			return rep, nil
		}
	}
	if e.store == nil || runID == "" {
		return Report{}, fmt.Errorf("run %s: %w", runID, ErrReportNotFound)
	}

	run, err := e.store.GetRun(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		return Report{}, fmt.Errorf("run %s: %w", runID, ErrReportNotFound)
	}
	if err != nil {
		return Report{}, err
	}
	var rep Report
	if err := json.Unmarshal(run.Report, &rep); err != nil {
		return Report{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	if e.reportTTL > 0 {
		e.reports.Set(runID, rep, reports.WithTTL(e.reportTTL))
	} else {
		e.reports.Set(runID, rep)
	}
	return rep, nil
}

// Runs lists stored runs, newest first, without their report bodies.
func (e *Engine) Runs(ctx context.Context, opts store.RunListOpts) ([]store.Run, error) {
	if e.store == nil {
		return nil, nil
	}
	runs, err := e.store.ListRuns(ctx, opts)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].Report = nil
	}
	return runs, nil
}

// Invalidate drops cached reports. With no run IDs every cached report and
// niche analysis is dropped; otherwise only the named runs, plus any niche
// analysis that points at one of them.
func (e *Engine) Invalidate(runIDs ...string) {
	e.reports.Invalidate(runIDs...)
	if len(runIDs) == 0 {
		e.analyses.Clear()
		return
	}
	for _, key := range e.analyses.Keys() {
		if rep, ok := e.analyses.Peek(key); ok && slices.Contains(runIDs, rep.RunID) {
			e.analyses.Delete(key)
		}
	}
}

// CachedRunIDs returns the IDs of the live cached reports, sorted.
func (e *Engine) CachedRunIDs() []string { return e.reports.RunIDs() }

// DeleteRun removes a run from the store and drops it from the caches. It
// returns ErrReportNotFound when the run was neither cached nor stored.
func (e *Engine) DeleteRun(ctx context.Context, runID string) error {
	cached := e.reports.IsValid(runID)
	e.Invalidate(runID)
	if e.store == nil {
		if cached {
			return nil
		}
		return fmt.Errorf("run %s: %w", runID, ErrReportNotFound)
	}

	err := e.store.DeleteRun(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		if cached {
			return nil
		}
		return fmt.Errorf("run %s: %w", runID, ErrReportNotFound)
	}
	return err
}

// RunItems returns the collected items a stored run was built from.
func (e *Engine) RunItems(ctx context.Context, runID string) ([]source.Item, error) {
	if e.store == nil {
		return nil, fmt.Errorf("run %s: %w", runID, ErrReportNotFound)
	}
	if _, err := e.store.GetRun(ctx, runID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrReportNotFound)
		}
		return nil, err
	}
	return e.store.ListRunItems(ctx, runID)
}

// NicheCounts returns how many stored runs exist per niche key. Without a
// store it is empty.
func (e *Engine) NicheCounts(ctx context.Context) (map[string]int, error) {
	if e.store == nil {
		return map[string]int{}, nil
	}
	return e.store.CountRunsByNiche(ctx)
}

// Sweep evicts expired entries from both caches and returns how many went.
func (e *Engine) Sweep() int {
	return e.reports.Sweep() + e.analyses.Sweep()
}

// CacheSize returns the number of live cached reports.
func (e *Engine) CacheSize() int { return e.reports.Size() }

func signalValues(scores []scoring.SignalScore) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for _, s := range scores {
		out[string(s.Kind)] = s.Score
	}
	return out
}
