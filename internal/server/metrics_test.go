package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/ragq-go/internal/logging"
	"github.com/54b3r/ragq-go/internal/pipeline"
)

// newMetricsTestServer builds a Server backed by a fresh isolated registry so
// tests do not pollute prometheus.DefaultRegisterer.
func newMetricsTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := &Server{
		querier: &fakeQuerier{answer: pipeline.Answer{Text: "ok"}},
		cfg: &Config{
			QueryTimeout:    5 * time.Minute,
			MetricsRegistry: reg,
			MetricsGatherer: reg,
		},
		log:     logging.Discard(),
		metrics: newServerMetrics(reg),
	}
	return s, reg
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	_, reg := newMetricsTestServer(t)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_QueryCounterIncremented(t *testing.T) {
	t.Parallel()
	s, _ := newMetricsTestServer(t)

	w := postQuery(s, `{"question":"q"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	_ = postQuery(s, `not-json`)

	if got := testutil.ToFloat64(s.metrics.queryRequestsTotal.WithLabelValues(outcomeOK)); got != 1 {
		t.Errorf("want ok counter=1, got %v", got)
	}
	// Rejected requests never reach the pipeline and are not counted.
	if got := testutil.ToFloat64(s.metrics.queryRequestsTotal.WithLabelValues(outcomeError)); got != 0 {
		t.Errorf("want error counter=0, got %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.queryInFlight); got != 0 {
		t.Errorf("want in_flight=0 after completion, got %v", got)
	}
}

func Test_Metrics_InstrumentRecordsStatus(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	h := s.instrument("health", http.HandlerFunc(s.handleHealth))
	for range 3 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	}

	if got := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues(http.MethodGet, "health", "200")); got != 3 {
		t.Errorf("want ragq_http_requests_total=3, got %v", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "ragq_http_duration_seconds" {
			if n := mf.GetMetric()[0].GetHistogram().GetSampleCount(); n != 3 {
				t.Errorf("want 3 duration samples, got %d", n)
			}
			return
		}
	}
	t.Error("ragq_http_duration_seconds not found in gathered metrics")
}
