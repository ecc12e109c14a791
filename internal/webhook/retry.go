package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/chigozirigeorge/omnixec-sub000/internal/config"
	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/execution"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/resilience"
	"github.com/chigozirigeorge/omnixec-sub000/internal/risk"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

// Loop drives bounded-retry execution attempts for committed quotes. One
// Loop instance is shared across every quote the webhook hands it; the
// consecutive-failure counter is tracked per chain and survives across
// quotes within the Loop's lifetime, matching the escalation behavior that
// trips the Risk Controller's circuit breaker.
type Loop struct {
	coordinator *execution.Coordinator
	riskCtl     *risk.Controller
	ledger      storage.Ledger
	cfg         config.RetryConfig
	backoffCfg  resilience.RetryConfig
	log         *logging.Logger

	mu                  sync.Mutex
	consecutiveFailures map[domain.Chain]int
}

func NewLoop(coordinator *execution.Coordinator, riskCtl *risk.Controller, ledger storage.Ledger, cfg config.RetryConfig, log *logging.Logger) *Loop {
	if log == nil {
		log = logging.NewDefault("retry-loop")
	}
	cfg = cfg.Normalized()
	return &Loop{
		coordinator:         coordinator,
		riskCtl:             riskCtl,
		ledger:              ledger,
		cfg:                 cfg,
		backoffCfg: resilience.RetryConfig{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: time.Duration(cfg.InitialBackoffSeconds) * time.Second,
			MaxDelay:     time.Duration(cfg.MaxBackoffSeconds) * time.Second,
			Multiplier:   2.0,
		},
		log:                 log,
		consecutiveFailures: make(map[domain.Chain]int),
	}
}

// Spawn runs the retry loop for quoteID in its own goroutine. Errors are
// logged, not returned: the caller (the webhook HTTP handler) has already
// responded to the payment notification by this point.
func (l *Loop) Spawn(quoteID string) {
	go func() {
		ctx := context.Background()
		if err := l.run(ctx, quoteID); err != nil {
			l.log.WithField("quote_id", quoteID).WithField("error", err.Error()).Warn("retry loop exited with error")
		}
	}()
}

func (l *Loop) run(ctx context.Context, quoteID string) error {
	var backoff time.Duration

	for attempt := 0; attempt < l.cfg.MaxRetries; attempt++ {
		q, err := l.ledger.GetQuote(ctx, quoteID)
		if err != nil {
			return svcerrors.DatabaseError("get_quote", err)
		}

		switch q.Status {
		case domain.QuoteStatusExecuted, domain.QuoteStatusSettled, domain.QuoteStatusFailed, domain.QuoteStatusExpired:
			return nil
		}

		err = l.coordinator.Run(ctx, q)
		if err == nil || err == storage.ErrDuplicateExecution {
			l.resetFailures(q.ExecutionChain)
			return nil
		}

		if l.recordFailure(q.ExecutionChain) {
			if _, breakerErr := l.riskCtl.TriggerCircuitBreaker(ctx, q.ExecutionChain, "five consecutive execution failures"); breakerErr != nil {
				l.log.WithField("chain", q.ExecutionChain).WithField("error", breakerErr.Error()).Error("failed to trigger circuit breaker")
			}
		}

		if attempt == l.cfg.MaxRetries-1 {
			return l.giveUp(ctx, q, err)
		}

		backoff = resilience.NextBackoff(backoff, l.backoffCfg)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil
}

// recordFailure increments the chain's consecutive-failure counter and
// reports whether it is at or above the trip threshold.
func (l *Loop) recordFailure(chain domain.Chain) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consecutiveFailures[chain]++
	return l.consecutiveFailures[chain] >= l.cfg.MaxConsecutiveFailures
}

func (l *Loop) resetFailures(chain domain.Chain) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consecutiveFailures[chain] = 0
}

func (l *Loop) giveUp(ctx context.Context, q domain.Quote, lastErr error) error {
	tx, err := l.ledger.BeginTx(ctx)
	if err != nil {
		return svcerrors.DatabaseError("begin_tx", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := l.ledger.TransitionQuote(ctx, tx, q.ID, domain.QuoteStatusCommitted, domain.QuoteStatusFailed); err != nil {
		// Another attempt may have already moved the quote on; nothing
		// further to do here.
		return nil
	}
	if err := l.ledger.AppendAudit(ctx, tx, domain.AuditLog{
		EventType: domain.AuditExecutionFailed,
		Chain:     q.ExecutionChain,
		EntityID:  q.ID,
		UserID:    q.UserID,
		Details:   map[string]interface{}{"reason": lastErr.Error(), "retries_exhausted": l.cfg.MaxRetries},
	}); err != nil {
		return svcerrors.DatabaseError("append_audit", err)
	}
	if err := tx.Commit(); err != nil {
		return svcerrors.DatabaseError("commit_tx", err)
	}
	committed = true
	return nil
}
