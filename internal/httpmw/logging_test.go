package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/metrics"
)

func TestAccessLogRecordsStatusAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })
	mw := AccessLog(logging.NewDefault("test"), m)(next)

	req := httptest.NewRequest(http.MethodPost, "/quotes", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected downstream status to pass through, got %d", rec.Code)
	}

	counter := m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/quotes", "201")
	if got := testutil.ToFloat64(counter); got != 1 {
		t.Fatalf("expected one recorded request, got %v", got)
	}
}

func TestAccessLogDefaultsStatusToOKWhenUnset(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	mw := AccessLog(logging.NewDefault("test"), m)(next)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	counter := m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")
	if got := testutil.ToFloat64(counter); got != 1 {
		t.Fatalf("expected the unset status to be recorded as 200, got %v", got)
	}
}
