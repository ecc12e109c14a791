// Package storage defines the Ledger: the only component permitted to
// mutate persistent state. Every state-changing verb is typed, and
// multi-step mutations accept a Tx opened by BeginTx so callers can group
// changes into a single database transaction.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
)

// Tx wraps a database transaction handle. Implementations decide what it
// actually contains (postgres: *sql.Tx; memory: a mutex guard).
type Tx interface {
	Commit() error
	Rollback() error
}

// Ledger is the authoritative transactional store for quotes, executions,
// settlements, balances, daily spend, circuit breakers and the audit log.
type Ledger interface {
	BeginTx(ctx context.Context) (Tx, error)

	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	BindWallet(ctx context.Context, userID string, chain domain.Chain, address string) error

	InsertQuote(ctx context.Context, q domain.Quote) (domain.Quote, error)
	GetQuote(ctx context.Context, id string) (domain.Quote, error)
	GetQuoteByNonce(ctx context.Context, nonce string) (domain.Quote, error)

	// TransitionQuote performs the conditional update
	// `UPDATE quotes SET status=$to WHERE id=$id AND status=$from`. It
	// returns svcerrors.InvalidState when zero rows are affected, and
	// rejects transitions that domain.ValidStateTransition forbids before
	// ever touching the database.
	TransitionQuote(ctx context.Context, tx Tx, id string, from, to domain.QuoteStatus) error

	// SweepExpiredQuotes transitions every (Pending|Committed) quote whose
	// expires_at has passed to Expired, returning the affected quote IDs.
	SweepExpiredQuotes(ctx context.Context, now time.Time) ([]string, error)

	// InsertExecution inserts an Execution row keyed by quote_id. The
	// unique constraint on quote_id is the idempotency fence: a second
	// insert for the same quote returns ErrDuplicateExecution.
	InsertExecution(ctx context.Context, tx Tx, e domain.Execution) (domain.Execution, error)
	GetExecutionByQuoteID(ctx context.Context, quoteID string) (domain.Execution, error)
	GetExecutionByID(ctx context.Context, executionID string) (domain.Execution, error)
	CompleteExecution(ctx context.Context, tx Tx, executionID string, status domain.ExecutionStatus, txHash, errMessage string, gasUsed decimal.NullDecimal) error

	// LockFunds performs the optimistic fund-locking update described by
	// the ledger invariant: it only succeeds if the unlocked balance
	// covers the requested amount.
	LockFunds(ctx context.Context, tx Tx, chain domain.Chain, asset string, amount decimal.Decimal) error
	GetBalance(ctx context.Context, chain domain.Chain, asset string) (domain.TreasuryBalance, error)
	SetBalance(ctx context.Context, chain domain.Chain, asset string, amount decimal.Decimal) error

	GetDailySpending(ctx context.Context, chain domain.Chain, date time.Time) (domain.DailySpending, error)
	IncrementDailySpending(ctx context.Context, tx Tx, chain domain.Chain, date time.Time, amount decimal.Decimal) error

	GetOpenCircuitBreaker(ctx context.Context, chain domain.Chain) (*domain.CircuitBreakerState, error)
	TriggerCircuitBreaker(ctx context.Context, chain domain.Chain, reason string) (domain.CircuitBreakerState, error)
	ResolveCircuitBreaker(ctx context.Context, id string) error

	InsertSettlement(ctx context.Context, s domain.Settlement) (domain.Settlement, error)
	SumUnverifiedSettlements(ctx context.Context, executionID string) (decimal.Decimal, error)
	// SumSettlementsByExecution totals every settlement recorded against an
	// execution regardless of verification state, so the aggregator can
	// compare funding received across every sweep cycle against the quote's
	// max_funding_amount rather than just the batch currently being verified.
	SumSettlementsByExecution(ctx context.Context, executionID string) (decimal.Decimal, error)
	UnverifiedSettlementsByChain(ctx context.Context, chain domain.Chain) ([]domain.Settlement, error)
	MarkSettlementsVerified(ctx context.Context, tx Tx, ids []string, verifiedAt time.Time) error

	AppendAudit(ctx context.Context, tx Tx, entry domain.AuditLog) error
}

// ErrDuplicateExecution is returned by InsertExecution when a row for the
// given quote_id already exists.
var ErrDuplicateExecution = errors.New("storage: duplicate execution for quote")

// ErrNoRows mirrors sql.ErrNoRows for lookups across both backends.
var ErrNoRows = errors.New("storage: no rows")
