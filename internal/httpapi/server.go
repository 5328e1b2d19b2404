// Package httpapi exposes analysis runs over a JSON HTTP API:
//
//	GET  /healthz                 liveness probe
//	POST /v1/analyses             ingest the data directory and run the pipeline
//	GET  /v1/analyses             list stored run IDs
//	GET  /v1/analyses/{id}        one stored run
//	GET  /v1/topology             link groups from the latest run
//	GET  /v1/links                all link reports from the latest run
//	GET  /v1/links/{id}           one link report
//	GET  /v1/links/{id}/report    plain-text operator report
//	POST /v1/whatif               resimulate a link at a given capacity and buffer
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/signalsfoundry/fronthaul-optimizer/core"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/decision"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/logging"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/pipeline"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/state"
)

// SeriesLoader supplies the trace set for a new analysis run.
type SeriesLoader interface {
	LoadAll(ctx context.Context) (map[int]*core.CellSeries, error)
}

// Runner executes analysis runs and what-if simulations.
type Runner interface {
	Run(ctx context.Context, series map[int]*core.CellSeries) (*pipeline.Run, error)
	WhatIf(ctx context.Context, group core.LinkGroup, series map[int]*core.CellSeries, capacityGbps, bufferMicros float64) (core.SimulationResult, error)
}

// Server routes API requests to the analyzer and the run store.
type Server struct {
	router  *mux.Router
	loader  SeriesLoader
	runner  Runner
	store   *state.Store
	log     logging.Logger
	timeout time.Duration
}

// ServerOption customises Server construction.
type ServerOption func(*Server)

// WithRunTimeout bounds how long a POST /v1/analyses may take.
func WithRunTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMiddleware appends extra middleware, e.g. the metrics collector.
func WithMiddleware(mw ...mux.MiddlewareFunc) ServerOption {
	return func(s *Server) { s.router.Use(mw...) }
}

// NewServer wires the routes and middleware.
func NewServer(loader SeriesLoader, runner Runner, store *state.Store, log logging.Logger, opts ...ServerOption) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		router:  mux.NewRouter(),
		loader:  loader,
		runner:  runner,
		store:   store,
		log:     log,
		timeout: 2 * time.Minute,
	}
	s.router.Use(s.requestIDMiddleware)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/analyses", s.handleRunAnalysis).Methods(http.MethodPost)
	v1.HandleFunc("/analyses", s.handleListAnalyses).Methods(http.MethodGet)
	v1.HandleFunc("/analyses/{id}", s.handleGetAnalysis).Methods(http.MethodGet)
	v1.HandleFunc("/topology", s.handleTopology).Methods(http.MethodGet)
	v1.HandleFunc("/links", s.handleListLinks).Methods(http.MethodGet)
	v1.HandleFunc("/links/{id:[0-9]+}", s.handleGetLink).Methods(http.MethodGet)
	v1.HandleFunc("/links/{id:[0-9]+}/report", s.handleLinkReport).Methods(http.MethodGet)
	v1.HandleFunc("/whatif", s.handleWhatIf).Methods(http.MethodPost)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get("X-Request-Id"); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, id := logging.EnsureRequestID(ctx)
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runSummary is the POST /v1/analyses response body.
type runSummary struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	CellCount   int       `json:"cell_count"`
	SlotCount   int       `json:"slot_count"`
	LinkCount   int       `json:"link_count"`
	FailedLinks int       `json:"failed_links"`
}

func summarize(run *pipeline.Run) runSummary {
	return runSummary{
		ID:          run.ID,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		CellCount:   run.CellCount,
		SlotCount:   run.SlotCount,
		LinkCount:   len(run.Links),
		FailedLinks: run.FailedLinks,
	}
}

func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	series, err := s.loader.LoadAll(ctx)
	if err != nil {
		s.log.Error(ctx, "trace ingestion failed", logging.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, "ingest: "+err.Error())
		return
	}

	run, err := s.runner.Run(ctx, series)
	if err != nil {
		s.log.Error(ctx, "analysis run failed", logging.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, "analyze: "+err.Error())
		return
	}
	if err := s.store.Put(ctx, run); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, summarize(run))
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"runs": s.store.ListIDs()})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// topologyView is the GET /v1/topology projection.
type topologyView struct {
	RunID string           `json:"run_id"`
	Links []core.LinkGroup `json:"links"`
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Latest()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topologyView{RunID: run.ID, Links: run.Topology.Groups})
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Latest()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": run.ID, "links": run.Links})
}

func (s *Server) handleGetLink(w http.ResponseWriter, r *http.Request) {
	linkID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid link ID")
		return
	}
	report, err := s.store.LinkReport(linkID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLinkReport(w http.ResponseWriter, r *http.Request) {
	linkID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid link ID")
		return
	}
	report, err := s.store.LinkReport(linkID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if report.Error != "" {
		writeError(w, http.StatusConflict, "link analysis failed: "+report.Error)
		return
	}

	text := decision.FormatReport(report.Recommendation, report.Optimization, report.Resilience)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// whatIfRequest is the POST /v1/whatif request body.
type whatIfRequest struct {
	LinkID       int     `json:"link_id"`
	CapacityGbps float64 `json:"capacity_gbps"`
	BufferMicros float64 `json:"buffer_micros"`
}

func (s *Server) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	var req whatIfRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	run, err := s.store.Latest()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	report := run.Report(req.LinkID)
	if report == nil {
		writeStoreError(w, state.ErrLinkNotFound)
		return
	}

	result, err := s.runner.WhatIf(r.Context(), report.Link, run.Series, req.CapacityGbps, req.BufferMicros)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"link_id":    req.LinkID,
		"simulation": result,
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, state.ErrNoRun):
		writeError(w, http.StatusNotFound, "no analysis run available; POST /v1/analyses first")
	case errors.Is(err, state.ErrRunNotFound), errors.Is(err, state.ErrLinkNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
