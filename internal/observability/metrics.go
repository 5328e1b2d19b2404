package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles Prometheus metrics for the analyzer and provides
// helpers to wire them into the HTTP API and the analysis pipeline.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	TopologyCells prometheus.Gauge
	TopologyLinks prometheus.Gauge
	StoredRuns    prometheus.Gauge

	RunsTotal           *prometheus.CounterVec
	RunDuration         prometheus.Histogram
	OptimizerIterations prometheus.Histogram
	CapacityReduction   prometheus.Histogram
}

// NewCollector registers analyzer Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "analyzer_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analyzer_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route", "method"})
	durations, err = registerHistogramVec(reg, durations, "analyzer_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	cells, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "analyzer_topology_cells",
		Help: "Number of cells in the most recent topology.",
	}), "analyzer_topology_cells")
	if err != nil {
		return nil, err
	}
	links, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "analyzer_topology_links",
		Help: "Number of shared links in the most recent topology.",
	}), "analyzer_topology_links")
	if err != nil {
		return nil, err
	}
	storedRuns, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "analyzer_stored_runs",
		Help: "Number of analysis runs retained in memory.",
	}), "analyzer_stored_runs")
	if err != nil {
		return nil, err
	}

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analyzer_runs_total",
		Help: "Total number of analysis runs, labeled by outcome (clean or partial).",
	}, []string{"outcome"})
	runsTotal, err = registerCounterVec(reg, runsTotal, "analyzer_runs_total")
	if err != nil {
		return nil, err
	}

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analyzer_run_duration_seconds",
		Help:    "End-to-end analysis run latency in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})
	runDurationReg, err := registerHistogram(reg, runDuration, "analyzer_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	iterations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analyzer_optimizer_iterations",
		Help:    "Binary-search iterations per optimized link.",
		Buckets: []float64{1, 2, 4, 6, 8, 10, 12, 16, 20},
	})
	iterationsReg, err := registerHistogram(reg, iterations, "analyzer_optimizer_iterations")
	if err != nil {
		return nil, err
	}

	reduction := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analyzer_capacity_reduction_percent",
		Help:    "Capacity reduction achieved per optimized link, in percent.",
		Buckets: []float64{0, 10, 25, 50, 75, 90, 95, 99},
	})
	reductionReg, err := registerHistogram(reg, reduction, "analyzer_capacity_reduction_percent")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:            gatherer,
		HTTPRequests:        requests,
		HTTPDurations:       durations,
		TopologyCells:       cells,
		TopologyLinks:       links,
		StoredRuns:          storedRuns,
		RunsTotal:           runsTotal,
		RunDuration:         runDurationReg,
		OptimizerIterations: iterationsReg,
		CapacityReduction:   reductionReg,
	}, nil
}

// Middleware records request counts and durations for HTTP handlers.
// Routes are labeled by their mux path template so that path variables
// do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		if c == nil {
			return
		}
		route := routeTemplate(r)
		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetTopologyCounts satisfies the pipeline's MetricsRecorder interface.
func (c *Collector) SetTopologyCounts(cells, links int) {
	if c == nil {
		return
	}
	if c.TopologyCells != nil {
		c.TopologyCells.Set(float64(cells))
	}
	if c.TopologyLinks != nil {
		c.TopologyLinks.Set(float64(links))
	}
}

// ObserveRun records one completed analysis run.
func (c *Collector) ObserveRun(d time.Duration, failedLinks int) {
	if c == nil {
		return
	}
	outcome := "clean"
	if failedLinks > 0 {
		outcome = "partial"
	}
	if c.RunsTotal != nil {
		c.RunsTotal.WithLabelValues(outcome).Inc()
	}
	if c.RunDuration != nil {
		c.RunDuration.Observe(d.Seconds())
	}
}

// ObserveOptimization records one successful link optimization.
func (c *Collector) ObserveOptimization(iterations int, reductionPct float64) {
	if c == nil {
		return
	}
	if c.OptimizerIterations != nil {
		c.OptimizerIterations.Observe(float64(iterations))
	}
	if c.CapacityReduction != nil {
		c.CapacityReduction.Observe(reductionPct)
	}
}

// SetStoredRuns satisfies the run store's RunMetricsRecorder interface.
func (c *Collector) SetStoredRuns(n int) {
	if c == nil || c.StoredRuns == nil {
		return
	}
	c.StoredRuns.Set(float64(n))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// routeTemplate returns the mux path template for the request, falling
// back to the raw path when the request was not routed by mux.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil && tmpl != "" {
			return tmpl
		}
	}
	if r.URL != nil && r.URL.Path != "" {
		return r.URL.Path
	}
	return "unknown"
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
