// Package risk implements the Risk Controller: the gatekeeper that checks
// per-chain daily limits and circuit-breaker state before any execution is
// allowed to proceed, and records spending atomically alongside it.
package risk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/config"
	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

type Controller struct {
	ledger storage.Ledger
	limits map[domain.Chain]decimal.Decimal
	log    *logging.Logger
}

func New(ledger storage.Ledger, cfg config.RiskConfig, log *logging.Logger) *Controller {
	if log == nil {
		log = logging.NewDefault("risk-controller")
	}
	defaultLimit, err := decimal.NewFromString(cfg.DefaultDailyLimit)
	if err != nil {
		defaultLimit = decimal.NewFromInt(1_000_000)
	}
	limits := make(map[domain.Chain]decimal.Decimal, len(domain.Chains))
	for _, chain := range domain.Chains {
		limits[chain] = defaultLimit
	}
	for chainStr, amountStr := range cfg.DailyLimits {
		if amount, err := decimal.NewFromString(amountStr); err == nil {
			limits[chainStr] = amount
		}
	}
	return &Controller{ledger: ledger, limits: limits, log: log}
}

func (c *Controller) dailyLimit(chain domain.Chain) decimal.Decimal {
	if limit, ok := c.limits[chain]; ok {
		return limit
	}
	return decimal.NewFromInt(1_000_000)
}

// CheckExecutionAllowed gates a prospective execution of `amount` on
// `chain`: an open circuit breaker or a daily-limit overrun both fail
// closed.
func (c *Controller) CheckExecutionAllowed(ctx context.Context, chain domain.Chain, amount decimal.Decimal) error {
	breaker, err := c.ledger.GetOpenCircuitBreaker(ctx, chain)
	if err != nil {
		return svcerrors.DatabaseError("get_open_circuit_breaker", err)
	}
	if breaker != nil {
		return svcerrors.CircuitBreakerTriggered(string(chain), breaker.Reason)
	}

	today := time.Now().UTC()
	spending, err := c.ledger.GetDailySpending(ctx, chain, today)
	if err != nil {
		return svcerrors.DatabaseError("get_daily_spending", err)
	}

	limit := c.dailyLimit(chain)
	attempted := spending.AmountSpent.Add(amount)
	if attempted.GreaterThan(limit) {
		_ = c.ledger.AppendAudit(ctx, nil, domain.AuditLog{
			EventType: domain.AuditLimitExceeded,
			Chain:     chain,
			Details: map[string]interface{}{
				"current":   spending.AmountSpent.String(),
				"attempted": attempted.String(),
				"limit":     limit.String(),
			},
		})
		return svcerrors.DailyLimitExceeded(string(chain), spending.AmountSpent.String(), attempted.String(), limit.String())
	}
	return nil
}

// RecordSpending increments the daily total inside the caller's ledger
// transaction. Callers call this in the same transaction that marks an
// Execution Success.
func (c *Controller) RecordSpending(ctx context.Context, tx storage.Tx, chain domain.Chain, amount decimal.Decimal) error {
	return c.ledger.IncrementDailySpending(ctx, tx, chain, time.Now().UTC(), amount)
}

// TriggerCircuitBreaker opens a breaker for chain and writes the
// corresponding audit event. Idempotent: re-triggering while one is already
// open returns the existing breaker.
func (c *Controller) TriggerCircuitBreaker(ctx context.Context, chain domain.Chain, reason string) (domain.CircuitBreakerState, error) {
	breaker, err := c.ledger.TriggerCircuitBreaker(ctx, chain, reason)
	if err != nil {
		return domain.CircuitBreakerState{}, svcerrors.DatabaseError("trigger_circuit_breaker", err)
	}
	_ = c.ledger.AppendAudit(ctx, nil, domain.AuditLog{
		EventType: domain.AuditCircuitBreakerTriggered,
		Chain:     chain,
		EntityID:  breaker.ID,
		Details:   map[string]interface{}{"reason": reason},
	})
	c.log.WithField("chain", chain).WithField("reason", reason).Warn("circuit breaker triggered")
	return breaker, nil
}
