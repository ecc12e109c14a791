package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chigozirigeorge/omnixec-sub000/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestHTTPSourceParsesSuccessfulResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate":1.5,"confidence_pct":0.9,"publish_time":1700000000}`))
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL)
	s.retry = fastRetry()

	price, err := s.GetPrice(context.Background(), "USDC", "USDC")
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if price.Rate != 1.5 {
		t.Fatalf("expected rate 1.5, got %v", price.Rate)
	}
	if price.ConfidencePct != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", price.ConfidencePct)
	}
}

func TestHTTPSourceRetriesOnTransientFailureThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"rate":2,"confidence_pct":1,"publish_time":1700000000}`))
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL)
	s.retry = fastRetry()

	price, err := s.GetPrice(context.Background(), "USDC", "USDC")
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if price.Rate != 2 {
		t.Fatalf("expected rate 2, got %v", price.Rate)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestHTTPSourceGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL)
	s.retry = fastRetry()

	_, err := s.GetPrice(context.Background(), "USDC", "USDC")
	if err == nil {
		t.Fatal("expected an error once every retry attempt fails")
	}
	if got := atomic.LoadInt32(&attempts); got != int32(s.retry.MaxAttempts) {
		t.Fatalf("expected %d attempts, got %d", s.retry.MaxAttempts, got)
	}
}

func TestHTTPSourceTripsBreakerAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL)
	s.retry = resilience.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
	s.breaker = resilience.NewCircuitBreaker(resilience.BreakerConfig{MaxFailures: 2, Timeout: time.Hour, HalfOpenMax: 1})

	for i := 0; i < 2; i++ {
		if _, err := s.GetPrice(context.Background(), "USDC", "USDC"); err == nil {
			t.Fatalf("attempt %d: expected failure from upstream", i)
		}
	}

	if s.breaker.State() != resilience.StateOpen {
		t.Fatalf("expected breaker to be open after repeated failures, got %s", s.breaker.State())
	}

	if _, err := s.GetPrice(context.Background(), "USDC", "USDC"); err == nil {
		t.Fatal("expected the open breaker to short-circuit the request")
	}
}

func TestHTTPSourceRejectsMissingRateField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"confidence_pct":1}`))
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL)
	s.retry = fastRetry()

	if _, err := s.GetPrice(context.Background(), "USDC", "USDC"); err == nil {
		t.Fatal("expected an error for a response missing the rate field")
	}
}
