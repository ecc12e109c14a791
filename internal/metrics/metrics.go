// Package metrics exposes Prometheus collectors for the quote, execution
// and risk subsystems.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector this orchestrator registers.
type Metrics struct {
	QuotesGeneratedTotal *prometheus.CounterVec
	QuotesCommittedTotal *prometheus.CounterVec
	QuoteTTLSeconds      *prometheus.HistogramVec

	ExecutionsTotal    *prometheus.CounterVec
	ExecutionDuration  *prometheus.HistogramVec
	ExecutionGasUsed   *prometheus.HistogramVec

	DailyLimitRejectionsTotal   *prometheus.CounterVec
	CircuitBreakerTriggeredTotal *prometheus.CounterVec
	CircuitBreakerOpen          *prometheus.GaugeVec

	SettlementSweepsTotal  *prometheus.CounterVec
	UnverifiedSettlements  *prometheus.GaugeVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New builds and registers every collector against registerer. Pass
// prometheus.DefaultRegisterer in production, a fresh prometheus.NewRegistry()
// in tests that want isolation.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		QuotesGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "quotes_generated_total", Help: "Total quotes generated, by chain pair."},
			[]string{"funding_chain", "execution_chain"},
		),
		QuotesCommittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "quotes_committed_total", Help: "Total quotes committed, by funding chain."},
			[]string{"funding_chain"},
		),
		QuoteTTLSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quote_ttl_seconds",
				Help:    "Issued quote TTL in seconds, bucketed by the oracle confidence band that produced it.",
				Buckets: []float64{15, 30, 60, 120, 300},
			},
			[]string{"chain_pair"},
		),
		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "executions_total", Help: "Total execution attempts, by chain and outcome."},
			[]string{"chain", "status"},
		),
		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "execution_duration_seconds",
				Help:    "Wall-clock time from Execute to confirmed/failed, by chain.",
				Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"chain"},
		),
		ExecutionGasUsed: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "execution_gas_used",
				Help:    "Gas/fee consumed per successful execution, by chain, in the chain's native unit.",
				Buckets: prometheus.ExponentialBuckets(1, 10, 10),
			},
			[]string{"chain"},
		),
		DailyLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "risk_daily_limit_rejections_total", Help: "Executions rejected for exceeding the daily spend limit, by chain."},
			[]string{"chain"},
		),
		CircuitBreakerTriggeredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "risk_circuit_breaker_triggered_total", Help: "Circuit breaker trips, by chain."},
			[]string{"chain"},
		),
		CircuitBreakerOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "risk_circuit_breaker_open", Help: "1 if a chain's circuit breaker is currently open."},
			[]string{"chain"},
		),
		SettlementSweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "settlement_sweeps_total", Help: "Settlement aggregator sweep outcomes, by chain and status."},
			[]string{"chain", "status"},
		),
		UnverifiedSettlements: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "settlement_unverified_count", Help: "Unverified settlement rows observed in the last sweep, by chain."},
			[]string{"chain"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests, by route and status."},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds, by route.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.QuotesGeneratedTotal,
			m.QuotesCommittedTotal,
			m.QuoteTTLSeconds,
			m.ExecutionsTotal,
			m.ExecutionDuration,
			m.ExecutionGasUsed,
			m.DailyLimitRejectionsTotal,
			m.CircuitBreakerTriggeredTotal,
			m.CircuitBreakerOpen,
			m.SettlementSweepsTotal,
			m.UnverifiedSettlements,
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
		)
	}
	return m
}

func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	global   *Metrics
	globalMu sync.Mutex
)

// Init sets the process-wide Metrics instance registered against the
// default Prometheus registry. Safe to call once at startup.
func Init() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(prometheus.DefaultRegisterer)
	}
	return global
}

// Global returns the process-wide Metrics instance, initializing it against
// prometheus.DefaultRegisterer if Init was never called.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(prometheus.DefaultRegisterer)
	}
	return global
}
