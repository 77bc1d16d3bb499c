package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWithMetrics_CountsRequests(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	h := WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), m)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	h.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/healthz", "418"))
	if got != 2 {
		t.Fatalf("requests_total=%v want 2", got)
	}
	if inflight := testutil.ToFloat64(m.inflight); inflight != 0 {
		t.Fatalf("requests_in_flight=%v want 0 after completion", inflight)
	}
}

func TestMetricsHandler_Exposition(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("empty exposition body")
	}
}
