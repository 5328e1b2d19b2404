// Package pipeline runs the full analysis chain over a set of cell
// traces: topology discovery, per-link traffic characterization,
// capacity optimization, resilience analysis, and the operator
// recommendation. Links are analyzed concurrently; one link failing
// does not abort the batch.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/fronthaul-optimizer/core"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/decision"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/logging"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/resilience"
)

const tracerName = "github.com/signalsfoundry/fronthaul-optimizer/internal/pipeline"

// MetricsRecorder receives pipeline-level measurements. All methods
// must be safe for concurrent use.
type MetricsRecorder interface {
	SetTopologyCounts(cells, links int)
	ObserveRun(d time.Duration, failedLinks int)
	ObserveOptimization(iterations int, reductionPct float64)
}

// LinkReport is the complete analysis output for one discovered link.
// Error is set (and the remaining fields after Traffic left zero) when
// analysis of this link failed.
type LinkReport struct {
	Link           core.LinkGroup          `json:"link"`
	PeakGbps       float64                 `json:"peak_gbps"`
	MeanGbps       float64                 `json:"mean_gbps"`
	PAPR           float64                 `json:"papr"`
	BurstSlots     []int                   `json:"burst_slots,omitempty"`
	Profile        core.ShapingProfile     `json:"profile"`
	Optimization   core.OptimizationResult `json:"optimization"`
	Resilience     resilience.Analysis     `json:"resilience"`
	Recommendation decision.Recommendation `json:"recommendation"`
	Error          string                  `json:"error,omitempty"`
}

// Run is one complete pipeline execution over a trace set.
type Run struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	CellCount   int           `json:"cell_count"`
	SlotCount   int           `json:"slot_count"`
	Topology    *core.Topology `json:"-"`
	Links       []LinkReport  `json:"links"`
	FailedLinks int           `json:"failed_links"`

	// Series is the input trace set, retained so that follow-up
	// what-if queries can resimulate against the same data.
	Series map[int]*core.CellSeries `json:"-"`
}

// Report returns the link report for the given link ID, or nil.
func (r *Run) Report(linkID int) *LinkReport {
	for i := range r.Links {
		if r.Links[i].Link.LinkID == linkID {
			return &r.Links[i]
		}
	}
	return nil
}

// Analyzer executes analysis runs. Construct with New; the zero value
// is not usable.
type Analyzer struct {
	cfg         core.Config
	concurrency int
	log         logging.Logger
	metrics     MetricsRecorder
	resilience  *resilience.Analyzer
	decision    *decision.Engine
	tracer      trace.Tracer
}

// Option customises Analyzer construction.
type Option func(*Analyzer)

// WithConcurrency bounds the number of links analyzed in parallel.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithDecisionEngine replaces the default decision engine.
func WithDecisionEngine(e *decision.Engine) Option {
	return func(a *Analyzer) {
		if e != nil {
			a.decision = e
		}
	}
}

// New builds an Analyzer around the given analysis parameters.
func New(cfg core.Config, log logging.Logger, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop()
	}

	rcfg := resilience.DefaultConfig()
	rcfg.SyncThreshold = cfg.CorrelationThreshold
	rcfg.BurstFactor = cfg.BurstFactor
	rcfg.MinBufferMicros = cfg.BufferMinimalMicros
	rcfg.MaxBufferMicros = cfg.BufferAggressiveMicros

	a := &Analyzer{
		cfg:         cfg,
		concurrency: 4,
		log:         log,
		resilience:  resilience.NewAnalyzer(rcfg),
		decision:    decision.NewEngine(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Run analyzes the full trace set: discovers the shared-link topology
// and produces a LinkReport per link, ordered by link ID.
func (a *Analyzer) Run(ctx context.Context, series map[int]*core.CellSeries) (*Run, error) {
	ctx, runID := logging.EnsureRequestID(ctx)
	ctx, span := a.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.Int("cells", len(series))))
	defer span.End()

	started := time.Now()

	topo, err := core.DiscoverTopology(series, a.cfg)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("topology discovery: %w", err)
	}

	a.log.Info(ctx, "topology discovered",
		logging.Int("cells", len(series)),
		logging.Int("links", len(topo.Groups)))
	if a.metrics != nil {
		a.metrics.SetTopologyCounts(len(series), len(topo.Groups))
	}

	run := &Run{
		ID:        runID,
		StartedAt: started,
		CellCount: len(series),
		Topology:  topo,
		Links:     make([]LinkReport, len(topo.Groups)),
		Series:    series,
	}
	for _, s := range series {
		run.SlotCount = s.Len()
		break
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, group := range topo.Groups {
		g.Go(func() error {
			run.Links[i] = a.analyzeLink(gctx, group, series)
			return nil
		})
	}
	// Worker errors are captured per link, never returned.
	_ = g.Wait()

	for i := range run.Links {
		if run.Links[i].Error != "" {
			run.FailedLinks++
		}
	}

	run.CompletedAt = time.Now()
	if a.metrics != nil {
		a.metrics.ObserveRun(run.CompletedAt.Sub(started), run.FailedLinks)
	}
	a.log.Info(ctx, "analysis run complete",
		logging.Int("links", len(run.Links)),
		logging.Int("failed_links", run.FailedLinks),
		logging.Float64("duration_sec", run.CompletedAt.Sub(started).Seconds()))

	return run, nil
}

// analyzeLink runs the single-link chain. Failures are recorded on the
// report instead of propagating.
func (a *Analyzer) analyzeLink(ctx context.Context, group core.LinkGroup, series map[int]*core.CellSeries) LinkReport {
	ctx, span := a.tracer.Start(ctx, "pipeline.analyze_link",
		trace.WithAttributes(
			attribute.Int("link_id", group.LinkID),
			attribute.Int("cells", len(group.Cells))))
	defer span.End()

	traffic := core.AggregateLinkTraffic(group, series)
	report := LinkReport{
		Link:     group,
		PeakGbps: traffic.Peak(),
		MeanGbps: traffic.Mean(),
	}

	profile, err := core.CharacterizeBurst(traffic, a.cfg)
	if err != nil {
		span.RecordError(err)
		report.Error = err.Error()
		a.log.Warn(ctx, "link characterization failed",
			logging.Int("link_id", group.LinkID),
			logging.String("error", err.Error()))
		return report
	}
	report.PAPR = profile.PAPR
	report.Profile = profile
	report.BurstSlots = core.DetectBursts(traffic.ThroughputGbps, a.cfg.BurstWindowSlots, a.cfg.BurstFactor)

	opt, err := core.OptimizeCapacity(traffic, profile, a.cfg)
	if err != nil {
		span.RecordError(err)
		report.Error = err.Error()
		a.log.Warn(ctx, "link optimization failed",
			logging.Int("link_id", group.LinkID),
			logging.String("error", err.Error()))
		return report
	}
	report.Optimization = opt
	if a.metrics != nil {
		a.metrics.ObserveOptimization(opt.SearchIterations, opt.CapacityReductionPct)
	}

	report.Resilience = a.resilience.Analyze(group, series, opt)
	report.Recommendation = a.decision.Recommend(opt, report.Resilience)

	span.SetAttributes(
		attribute.Float64("optimal_gbps", opt.OptimalCapacityGbps),
		attribute.String("action", string(report.Recommendation.Action)))
	return report
}

// WhatIf simulates one link's aggregate traffic against an operator
// supplied capacity and buffer.
func (a *Analyzer) WhatIf(ctx context.Context, group core.LinkGroup, series map[int]*core.CellSeries, capacityGbps, bufferMicros float64) (core.SimulationResult, error) {
	if capacityGbps <= 0 {
		return core.SimulationResult{}, fmt.Errorf("capacity must be positive, got %g", capacityGbps)
	}
	if bufferMicros < 0 {
		return core.SimulationResult{}, fmt.Errorf("buffer must be non-negative, got %g", bufferMicros)
	}

	_, span := a.tracer.Start(ctx, "pipeline.what_if",
		trace.WithAttributes(
			attribute.Int("link_id", group.LinkID),
			attribute.Float64("capacity_gbps", capacityGbps),
			attribute.Float64("buffer_micros", bufferMicros)))
	defer span.End()

	traffic := core.AggregateLinkTraffic(group, series)
	return core.SimulateLeakyBucket(traffic.ThroughputGbps, capacityGbps, bufferMicros, a.cfg), nil
}

// SweepPoint is one sample of a capacity sweep.
type SweepPoint struct {
	CapacityGbps  float64 `json:"capacity_gbps"`
	LossRatio     float64 `json:"loss_ratio"`
	PeakOccupancy float64 `json:"peak_occupancy"`
	Feasible      bool    `json:"feasible"`
}

// SweepCapacity simulates a link across evenly spaced capacities from
// lowGbps to highGbps inclusive, in parallel, and returns the points
// ordered by capacity.
func (a *Analyzer) SweepCapacity(ctx context.Context, group core.LinkGroup, series map[int]*core.CellSeries, lowGbps, highGbps float64, steps int, bufferMicros float64) ([]SweepPoint, error) {
	if steps < 2 {
		return nil, fmt.Errorf("sweep needs at least 2 steps, got %d", steps)
	}
	if lowGbps <= 0 || highGbps < lowGbps {
		return nil, fmt.Errorf("invalid sweep range [%g, %g]", lowGbps, highGbps)
	}

	_, span := a.tracer.Start(ctx, "pipeline.sweep_capacity",
		trace.WithAttributes(
			attribute.Int("link_id", group.LinkID),
			attribute.Int("steps", steps)))
	defer span.End()

	traffic := core.AggregateLinkTraffic(group, series)
	points := make([]SweepPoint, steps)
	step := (highGbps - lowGbps) / float64(steps-1)

	var wg sync.WaitGroup
	sem := make(chan struct{}, a.concurrency)
	for i := range points {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			capacity := lowGbps + float64(i)*step
			res := core.SimulateLeakyBucket(traffic.ThroughputGbps, capacity, bufferMicros, a.cfg)
			points[i] = SweepPoint{
				CapacityGbps:  capacity,
				LossRatio:     res.LossRatio,
				PeakOccupancy: res.PeakOccupancy,
				Feasible:      res.LossRatio <= a.cfg.LossLimit,
			}
		}()
	}
	wg.Wait()

	return points, nil
}
