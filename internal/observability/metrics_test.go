package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMiddlewareRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	router := mux.NewRouter()
	router.Use(collector.Middleware)
	router.HandleFunc("/v1/links/{id}", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/v1/links/3", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/v1/links/{id}", "GET", "200")); got != 1 {
		t.Fatalf("analyzer_http_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "analyzer_http_request_duration_seconds", map[string]string{
		"route":  "/v1/links/{id}",
		"method": "GET",
	}); count != 1 {
		t.Fatalf("analyzer_http_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestMiddlewareRecordsErrorStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	router := mux.NewRouter()
	router.Use(collector.Middleware)
	router.HandleFunc("/v1/analyses", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}).Methods(http.MethodPost)

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/v1/analyses", "POST", "400")); got != 1 {
		t.Fatalf("analyzer_http_requests_total error label = %v, want 1", got)
	}
}

func TestCollectorRecordsPipelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	collector.SetTopologyCounts(6, 3)
	collector.SetStoredRuns(2)
	collector.ObserveRun(250*time.Millisecond, 0)
	collector.ObserveRun(100*time.Millisecond, 1)
	collector.ObserveOptimization(12, 83.5)

	if got := testutil.ToFloat64(collector.TopologyCells); got != 6 {
		t.Errorf("analyzer_topology_cells = %v, want 6", got)
	}
	if got := testutil.ToFloat64(collector.TopologyLinks); got != 3 {
		t.Errorf("analyzer_topology_links = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.StoredRuns); got != 2 {
		t.Errorf("analyzer_stored_runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.RunsTotal.WithLabelValues("clean")); got != 1 {
		t.Errorf("analyzer_runs_total{outcome=clean} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.RunsTotal.WithLabelValues("partial")); got != 1 {
		t.Errorf("analyzer_runs_total{outcome=partial} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "analyzer_optimizer_iterations", nil); count != 1 {
		t.Errorf("analyzer_optimizer_iterations sample_count = %d, want 1", count)
	}
}

func TestMetricsHandlerExposesAnalyzerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	collector.SetTopologyCounts(6, 3)
	collector.HTTPRequests.WithLabelValues("/healthz", "GET", "200").Inc()
	collector.HTTPDurations.WithLabelValues("/healthz", "GET").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"analyzer_http_requests_total",
		"analyzer_http_request_duration_seconds",
		"analyzer_topology_cells",
		"analyzer_topology_links",
		"analyzer_stored_runs",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
