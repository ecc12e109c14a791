// Package httpapi wires the orchestrator's gorilla/mux HTTP surface:
// quote issuance, commit, status, webhook ingestion and health.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/httpmw"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/metrics"
	"github.com/chigozirigeorge/omnixec-sub000/internal/quote"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/webhook"
)

// Server owns the HTTP listener and implements system.Service.
type Server struct {
	httpServer *http.Server
	log        *logging.Logger
}

// Deps bundles everything the route handlers need.
type Deps struct {
	Engine    *quote.Engine
	Ledger    storage.Ledger
	Webhook   *webhook.Ingestor
	RetryLoop *webhook.Loop
	Metrics   *metrics.Metrics
	Log       *logging.Logger
}

func NewServer(addr string, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logging.NewDefault("httpapi")
	}
	h := &handlers{deps: deps}

	router := mux.NewRouter()
	router.Use(httpmw.Recovery(deps.Log))
	router.Use(httpmw.AccessLog(deps.Log, deps.Metrics))
	router.Use(httpmw.CORS(httpmw.CORSConfig{}))
	router.Use(httpmw.BodyLimit(0))

	limiter := httpmw.NewRateLimiter(20, 40)
	router.Use(limiter.Handler)

	router.HandleFunc("/quote", h.createQuote).Methods(http.MethodPost)
	router.HandleFunc("/commit", h.commitQuote).Methods(http.MethodPost)
	router.HandleFunc("/status/{id}", h.status).Methods(http.MethodGet)
	router.HandleFunc("/webhook/payment", h.webhookPayment).Methods(http.MethodPost)
	router.HandleFunc("/health", h.health).Methods(http.MethodGet)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: deps.Log,
	}
}

func (s *Server) Name() string { return "http-server" }

func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithField("error", err.Error()).Error("http server stopped unexpectedly")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// chainsForHealth lists every chain the health handler probes for an open
// circuit breaker.
var chainsForHealth = domain.Chains
