// Package expiry runs the periodic sweep that transitions quotes whose
// expires_at has passed into the Expired terminal state.
package expiry

import (
	"context"
	"sync"
	"time"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
)

const defaultInterval = 10 * time.Second

// Sweeper periodically calls storage.Ledger.SweepExpiredQuotes and
// implements system.Service.
type Sweeper struct {
	ledger   storage.Ledger
	interval time.Duration
	log      *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func New(ledger storage.Ledger, interval time.Duration, log *logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	if log == nil {
		log = logging.NewDefault("expiry-sweeper")
	}
	return &Sweeper{ledger: ledger, interval: interval, log: log}
}

func (s *Sweeper) Name() string { return "expiry-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.tick(runCtx)
			}
		}
	}()

	s.log.Info("expiry sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	ids, err := s.ledger.SweepExpiredQuotes(ctx, time.Now().UTC())
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("expired quote sweep failed")
		return
	}
	if len(ids) == 0 {
		return
	}
	s.log.WithField("count", len(ids)).Info("expired quotes swept")

	for _, id := range ids {
		q, err := s.ledger.GetQuote(ctx, id)
		if err != nil {
			s.log.WithField("quote_id", id).WithField("error", err.Error()).Warn("failed to load swept quote for audit")
			continue
		}
		if err := s.ledger.AppendAudit(ctx, nil, domain.AuditLog{
			EventType: domain.AuditQuoteExpired,
			Chain:     q.FundingChain,
			EntityID:  q.ID,
			UserID:    q.UserID,
		}); err != nil {
			s.log.WithField("quote_id", id).WithField("error", err.Error()).Warn("failed to record expiry audit event")
		}
	}
}
