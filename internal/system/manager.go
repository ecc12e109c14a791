package system

import (
	"context"
	"fmt"
	"sync"

	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
)

// Manager starts services in registration order and stops them in reverse,
// so dependents (the HTTP server) shut down before their dependencies (the
// ledger connection pool).
type Manager struct {
	log      *logging.Logger
	mu       sync.Mutex
	services []Service
	started  []Service
}

func NewManager(log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewDefault("system.manager")
	}
	return &Manager{log: log}
}

// Register adds a service to the manager. It must be called before Start.
func (m *Manager) Register(svc Service) error {
	if svc == nil {
		return fmt.Errorf("system: cannot register nil service")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.services {
		if existing.Name() == svc.Name() {
			return fmt.Errorf("system: service %q already registered", svc.Name())
		}
	}
	m.services = append(m.services, svc)
	return nil
}

// Start starts every registered service in order. If one fails, previously
// started services are stopped before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	for _, svc := range services {
		m.log.WithField("service", svc.Name()).Info("starting service")
		if err := svc.Start(ctx); err != nil {
			m.log.WithField("service", svc.Name()).WithField("error", err).Error("service failed to start")
			m.stopStarted(ctx)
			return fmt.Errorf("system: start %s: %w", svc.Name(), err)
		}
		m.mu.Lock()
		m.started = append(m.started, svc)
		m.mu.Unlock()
	}
	return nil
}

// Stop stops every started service in reverse start order, collecting errors.
func (m *Manager) Stop(ctx context.Context) error {
	return m.stopStarted(ctx)
}

func (m *Manager) stopStarted(ctx context.Context) error {
	m.mu.Lock()
	started := append([]Service(nil), m.started...)
	m.started = nil
	m.mu.Unlock()

	var firstErr error
	for i := len(started) - 1; i >= 0; i-- {
		svc := started[i]
		if err := svc.Stop(ctx); err != nil {
			m.log.WithField("service", svc.Name()).WithField("error", err).Error("service failed to stop cleanly")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NoopService is a placeholder implementation, useful for wiring tests.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string                      { return n.ServiceName }
func (n NoopService) Start(ctx context.Context) error    { return nil }
func (n NoopService) Stop(ctx context.Context) error     { return nil }
