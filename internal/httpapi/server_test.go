package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/signalsfoundry/fronthaul-optimizer/core"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/logging"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/pipeline"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/state"
)

type staticLoader struct {
	series map[int]*core.CellSeries
	err    error
}

func (l *staticLoader) LoadAll(context.Context) (map[int]*core.CellSeries, error) {
	return l.series, l.err
}

// twoLinkSeries: cells 1+2 share loss (one link), cell 3 is a clean
// singleton.
func twoLinkSeries() map[int]*core.CellSeries {
	const slots = 100

	loss := make([]float64, slots)
	loss[10] = 5
	loss[40] = 3

	bursty := func() []float64 {
		tp := make([]float64, slots)
		for i := range tp {
			tp[i] = 0.1
		}
		tp[10] = 15
		return tp
	}

	flat := make([]float64, slots)
	for i := range flat {
		flat[i] = 5.0
	}

	return map[int]*core.CellSeries{
		1: {CellID: 1, ThroughputGbps: bursty(), Loss: loss},
		2: {CellID: 2, ThroughputGbps: bursty(), Loss: loss},
		3: {CellID: 3, ThroughputGbps: flat, Loss: make([]float64, slots)},
	}
}

func newTestServer(t *testing.T, loader SeriesLoader) *Server {
	t.Helper()
	runner, err := pipeline.New(core.DefaultConfig(), logging.Noop())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return NewServer(loader, runner, state.NewStore(nil), logging.Noop())
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func runAnalysis(t *testing.T, srv *Server) runSummary {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/v1/analyses", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /v1/analyses = %d: %s", rr.Code, rr.Body.String())
	}
	var summary runSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	return summary
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &staticLoader{series: twoLinkSeries()})

	rr := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/healthz = %d", rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("response missing X-Request-Id")
	}
}

func TestRunAnalysisAndFetch(t *testing.T) {
	srv := newTestServer(t, &staticLoader{series: twoLinkSeries()})

	summary := runAnalysis(t, srv)
	if summary.ID == "" || summary.CellCount != 3 || summary.LinkCount != 2 {
		t.Fatalf("summary = %+v, want 3 cells over 2 links", summary)
	}

	rr := doJSON(t, srv, http.MethodGet, "/v1/analyses", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), summary.ID) {
		t.Fatalf("GET /v1/analyses = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/v1/analyses/"+summary.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /v1/analyses/%s = %d", summary.ID, rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/v1/analyses/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("GET unknown run = %d, want 404", rr.Code)
	}
}

func TestTopologyAndLinks(t *testing.T) {
	srv := newTestServer(t, &staticLoader{series: twoLinkSeries()})

	// Everything 404s before the first run.
	for _, path := range []string{"/v1/topology", "/v1/links", "/v1/links/1"} {
		if rr := doJSON(t, srv, http.MethodGet, path, nil); rr.Code != http.StatusNotFound {
			t.Fatalf("GET %s before run = %d, want 404", path, rr.Code)
		}
	}

	runAnalysis(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/v1/topology", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /v1/topology = %d", rr.Code)
	}
	var topo topologyView
	if err := json.Unmarshal(rr.Body.Bytes(), &topo); err != nil {
		t.Fatalf("decode topology: %v", err)
	}
	if len(topo.Links) != 2 || len(topo.Links[0].Cells) != 2 {
		t.Fatalf("topology = %+v, want shared pair first", topo)
	}

	rr = doJSON(t, srv, http.MethodGet, "/v1/links/1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /v1/links/1 = %d", rr.Code)
	}
	var report pipeline.LinkReport
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode link report: %v", err)
	}
	if report.Link.LinkID != 1 || report.Recommendation.Action == "" {
		t.Fatalf("link report = %+v, want analyzed link 1", report)
	}

	if rr := doJSON(t, srv, http.MethodGet, "/v1/links/99", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("GET /v1/links/99 = %d, want 404", rr.Code)
	}
	if rr := doJSON(t, srv, http.MethodGet, "/v1/links/abc", nil); rr.Code != http.StatusNotFound {
		// Non-numeric IDs never match the route.
		t.Fatalf("GET /v1/links/abc = %d, want 404", rr.Code)
	}
}

func TestLinkReportText(t *testing.T) {
	srv := newTestServer(t, &staticLoader{series: twoLinkSeries()})
	runAnalysis(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/v1/links/1/report", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /v1/links/1/report = %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %s, want text/plain", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{"LINK 1", "Recommendation", "Next steps:"} {
		if !strings.Contains(body, want) {
			t.Errorf("report missing %q:\n%s", want, body)
		}
	}
}

func TestWhatIf(t *testing.T) {
	srv := newTestServer(t, &staticLoader{series: twoLinkSeries()})
	runAnalysis(t, srv)

	rr := doJSON(t, srv, http.MethodPost, "/v1/whatif", whatIfRequest{
		LinkID:       2,
		CapacityGbps: 6.0,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /v1/whatif = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		LinkID     int                   `json:"link_id"`
		Simulation core.SimulationResult `json:"simulation"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode what-if: %v", err)
	}
	// 5 Gbps of flat traffic through 6 Gbps loses nothing.
	if resp.LinkID != 2 || resp.Simulation.LossRatio != 0 {
		t.Fatalf("what-if = %+v, want lossless link 2", resp)
	}

	rr = doJSON(t, srv, http.MethodPost, "/v1/whatif", whatIfRequest{LinkID: 2})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("what-if with zero capacity = %d, want 400", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/v1/whatif", whatIfRequest{LinkID: 99, CapacityGbps: 1})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("what-if for unknown link = %d, want 404", rr.Code)
	}
}

func TestRunAnalysisIngestFailure(t *testing.T) {
	srv := newTestServer(t, &staticLoader{err: errors.New("no trace files")})

	rr := doJSON(t, srv, http.MethodPost, "/v1/analyses", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("POST /v1/analyses with broken loader = %d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "no trace files") {
		t.Errorf("error body = %s, want loader error", rr.Body.String())
	}
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer(t, &staticLoader{series: twoLinkSeries()})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("X-Request-Id = %q, want req-42", got)
	}
}
