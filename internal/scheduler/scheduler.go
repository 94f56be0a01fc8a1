package scheduler

import (
	"context"
	"time"

	"github.com/elonfeng/gapradar/internal/logging"
	"github.com/elonfeng/gapradar/internal/store"
	"github.com/elonfeng/gapradar/pkg/demand"
)

// Config holds the scheduler intervals. Zero values fall back to defaults;
// a zero WatchInterval with an empty watchlist disables re-analysis.
type Config struct {
	SweepInterval time.Duration
	PruneInterval time.Duration
	Retention     time.Duration
	WatchInterval time.Duration
	Watchlist     []string
}

// Scheduler runs periodic cache sweeps, run pruning and watchlist
// re-analysis.
type Scheduler struct {
	engine *demand.Engine
	store  store.Store // optional, nil disables pruning
	logger logging.Logger
	cfg    Config
	now    func() time.Time
}

// New creates a new scheduler.
func New(engine *demand.Engine, s store.Store, logger logging.Logger, cfg Config) *Scheduler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = 6 * time.Hour
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		engine: engine,
		store:  s,
		logger: logger.Named("scheduler"),
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	sweepTicker := time.NewTicker(s.cfg.SweepInterval)
	pruneTicker := time.NewTicker(s.cfg.PruneInterval)
	watchTicker := time.NewTicker(s.cfg.WatchInterval)
	defer sweepTicker.Stop()
	defer pruneTicker.Stop()
	defer watchTicker.Stop()

	// Run immediately on start.
	s.prune(ctx)
	s.watch(ctx)

	s.logger.Info("running",
		logging.Duration("sweep_every", s.cfg.SweepInterval),
		logging.Duration("prune_every", s.cfg.PruneInterval),
		logging.Duration("watch_every", s.cfg.WatchInterval),
		logging.Int("watchlist", len(s.cfg.Watchlist)),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopped")
			return ctx.Err()
		case <-sweepTicker.C:
			s.sweep()
		case <-pruneTicker.C:
			s.prune(ctx)
		case <-watchTicker.C:
			s.watch(ctx)
		}
	}
}

func (s *Scheduler) sweep() int {
	n := s.engine.Sweep()
	if n > 0 {
		s.logger.Debug("swept expired cache entries", logging.Int("evicted", n))
	}
	return n
}

func (s *Scheduler) prune(ctx context.Context) int64 {
	if s.store == nil {
		return 0
	}
	cutoff := s.now().Add(-s.cfg.Retention)
	n, err := s.store.PruneRuns(ctx, cutoff)
	if err != nil {
		s.logger.Error("prune runs failed", logging.Err(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("pruned runs", logging.Int64("deleted", n), logging.String("before", cutoff.Format(time.RFC3339)))
	}
	return n
}

// watch re-analyzes every watched niche, bypassing the niche cache.
func (s *Scheduler) watch(ctx context.Context) int {
	done := 0
	for _, niche := range s.cfg.Watchlist {
		if ctx.Err() != nil {
			break
		}
		rep, err := s.engine.Analyze(ctx, demand.Request{Niche: niche, Refresh: true})
		if err != nil {
			s.logger.Warn("watchlist analysis failed", logging.String("niche", niche), logging.Err(err))
			continue
		}
		s.logger.Info("watchlist analyzed",
			logging.String("niche", niche),
			logging.String("run_id", rep.RunID),
			logging.Int("score", rep.Result.UnifiedScore),
		)
		done++
	}
	return done
}
