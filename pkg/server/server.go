package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/elonfeng/gapradar/internal/logging"
	"github.com/elonfeng/gapradar/internal/metrics"
	"github.com/elonfeng/gapradar/internal/store"
	"github.com/elonfeng/gapradar/pkg/demand"
	"github.com/elonfeng/gapradar/pkg/scoring"
	"github.com/elonfeng/gapradar/pkg/source"
)

const maxBodyBytes = 1 << 20

// Server provides the HTTP API.
type Server struct {
	engine  *demand.Engine
	sources []source.Source
	metrics *metrics.Metrics // optional
	logger  logging.Logger
	port    int
}

// New creates a new HTTP server.
func New(engine *demand.Engine, sources []source.Source, m *metrics.Metrics, logger logging.Logger, port int) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		engine:  engine,
		sources: sources,
		metrics: m,
		logger:  logger.Named("http"),
		port:    port,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/score", s.handleScore)
		api.Post("/analyze", s.handleAnalyze)
		api.Get("/sources", s.handleSources)
		api.Get("/niches", s.handleNiches)

		api.Route("/runs", func(rr chi.Router) {
			rr.Get("/", s.handleRuns)
			rr.Delete("/{runID}", s.handleDeleteRun)
			rr.Get("/{runID}/items", s.handleRunItems)
		})

		api.Route("/reports", func(rr chi.Router) {
			rr.Delete("/", s.handleInvalidateAll)
			rr.Get("/{runID}", s.handleGetReport)
			rr.Delete("/{runID}", s.handleInvalidateReport)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", logging.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// observe logs each request and counts it by route pattern and status.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.HTTPRequest(route, status)
		}

		fields := []logging.Field{
			logging.String("method", r.Method),
			logging.String("route", route),
			logging.Int("status", status),
			logging.Duration("took", time.Since(start)),
			logging.String("request_id", chimw.GetReqID(r.Context())),
		}
		switch {
		case status >= 500:
			s.logger.Error("request", fields...)
		case status >= 400:
			s.logger.Warn("request", fields...)
		default:
			s.logger.Debug("request", fields...)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"cached_reports": s.engine.CacheSize(),
	})
}

// scoreRequest accepts either raw signals or a precomputed breakdown.
type scoreRequest struct {
	scoring.Payload
	Breakdown *scoring.Breakdown `json:"breakdown,omitempty"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Breakdown != nil {
		res, err := scoring.Combine(*req.Breakdown)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := s.engine.Score(r.Context(), req.Payload)
	var missing *scoring.MissingSignalError
	switch {
	case errors.As(err, &missing):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   scoring.ErrMissingSignal.Error(),
			"missing": missing.Kinds,
		})
		return
	case err != nil:
		s.logger.Error("score failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to compute demand score")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req demand.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.engine.Analyze(r.Context(), req)
	switch {
	case errors.Is(err, demand.ErrEmptyNiche):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("analyze failed", logging.String("niche", req.Niche), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to analyze niche")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.RunListOpts{Limit: 50}
	if niche := q.Get("niche"); niche != "" {
		opts.NicheKey = demand.NicheKey(niche)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_score must be an integer")
			return
		}
		opts.MinScore = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		opts.Since = t
	}

	runs, err := s.engine.Runs(r.Context(), opts)
	if err != nil {
		s.logger.Error("list runs failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	err := s.engine.DeleteRun(r.Context(), runID)
	switch {
	case errors.Is(err, demand.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		s.logger.Error("delete run failed", logging.String("run_id", runID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to delete run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": runID})
}

func (s *Server) handleRunItems(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	items, err := s.engine.RunItems(r.Context(), runID)
	switch {
	case errors.Is(err, demand.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case err != nil:
		s.logger.Error("list run items failed", logging.String("run_id", runID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to list run items")
		return
	}
	if items == nil {
		items = []source.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"count": len(items),
	})
}

func (s *Server) handleNiches(w http.ResponseWriter, r *http.Request) {
	counts, err := s.engine.NicheCounts(r.Context())
	if err != nil {
		s.logger.Error("count niches failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to count runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  counts,
		"count": len(counts),
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	names := make([]source.SourceType, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, src.Name())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  names,
		"count": len(names),
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rep, err := s.engine.Report(r.Context(), runID)
	switch {
	case errors.Is(err, demand.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "report not found")
		return
	case err != nil:
		s.logger.Error("load report failed", logging.String("run_id", runID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleInvalidateReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	s.engine.Invalidate(runID)
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": []string{runID}})
}

func (s *Server) handleInvalidateAll(w http.ResponseWriter, r *http.Request) {
	ids := s.engine.CachedRunIDs()
	s.engine.Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": ids, "count": len(ids)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
