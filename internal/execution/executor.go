// Package execution implements the Execution Router and the per-chain
// Executor contract: translating a committed quote into a signed on-chain
// transaction, observing confirmation, and reporting gas consumed.
package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
)

// Executor is implemented once per supported execution chain.
type Executor interface {
	Chain() domain.Chain

	// Execute is idempotent at the on-chain layer: it produces exactly one
	// transaction for a given quote, driven by the caller's idempotency
	// fence (the Execution uniqueness constraint), not by Execute itself.
	Execute(ctx context.Context, q domain.Quote) (txHash string, gasUsed decimal.Decimal, err error)

	CheckTreasuryBalance(ctx context.Context, asset string, required decimal.Decimal) error
	GetTreasuryBalance(ctx context.Context, asset string) (decimal.Decimal, error)

	// TransferToTreasury moves settled funds to the treasury during
	// reconciliation. Not idempotent; callers dedupe via the Settlement
	// ledger rows.
	TransferToTreasury(ctx context.Context, asset string, amount decimal.Decimal) (txHash string, err error)

	WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) error
}
