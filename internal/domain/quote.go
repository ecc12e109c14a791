package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus is the state-machine position of a Quote. Expired, Failed and
// Settled are terminal sinks with no outgoing edges.
type QuoteStatus string

const (
	QuoteStatusPending   QuoteStatus = "pending"
	QuoteStatusCommitted QuoteStatus = "committed"
	QuoteStatusExecuted  QuoteStatus = "executed"
	QuoteStatusFailed    QuoteStatus = "failed"
	QuoteStatusExpired   QuoteStatus = "expired"
	QuoteStatusSettled   QuoteStatus = "settled"
)

// quoteTransitions is the adjacency set enforced by the ledger's conditional
// UPDATE. A transition not present here is always illegal, independent of
// what the database returns.
var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusPending:   {QuoteStatusCommitted, QuoteStatusExpired},
	QuoteStatusCommitted: {QuoteStatusExecuted, QuoteStatusFailed, QuoteStatusExpired},
	QuoteStatusExecuted:  {QuoteStatusSettled, QuoteStatusFailed},
	QuoteStatusFailed:    nil,
	QuoteStatusExpired:   nil,
	QuoteStatusSettled:   nil,
}

// ValidStateTransition reports whether moving from `from` to `to` is allowed
// by the quote state machine, independent of what row is actually in the
// database.
func ValidStateTransition(from, to QuoteStatus) bool {
	for _, candidate := range quoteTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Quote is the central entity: a binding price offer that gates execution.
type Quote struct {
	ID                     string
	UserID                 string
	FundingChain           Chain
	ExecutionChain         Chain
	FundingAsset           string
	ExecutionAsset         string
	MaxFundingAmount       decimal.Decimal
	ExecutionCost          decimal.Decimal
	ServiceFee             decimal.Decimal
	ExecutionInstructions  []byte
	EstimatedComputeUnits  *int64
	Nonce                  string
	Status                 QuoteStatus
	ExpiresAt              time.Time
	PaymentAddress         string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// HasValidChainPair reports whether the quote's chains differ. Allowlist
// membership is checked separately by the risk/quote config, since it is
// environment-specific rather than intrinsic to the quote.
func (q Quote) HasValidChainPair() bool {
	return q.FundingChain != "" && q.ExecutionChain != "" && q.FundingChain != q.ExecutionChain
}

func (q Quote) IsExpired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// IsTerminal reports whether q.Status has no outgoing transitions.
func (q Quote) IsTerminal() bool {
	return len(quoteTransitions[q.Status]) == 0
}

// Execution is the single on-chain attempt associated with a quote. The
// `(quote_id)` uniqueness constraint on its storage table is the hard
// idempotency fence described in the execution algorithm.
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "pending"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

type Execution struct {
	ID              string
	QuoteID         string
	ExecutionChain  Chain
	TransactionHash string
	Status          ExecutionStatus
	GasUsed         decimal.NullDecimal
	ErrorMessage    string
	RetryCount      int
	ExecutedAt      time.Time
	CompletedAt     *time.Time
}

// Settlement records a funding-side transaction observed for a given
// execution. Multiple settlements per execution are permitted but must
// aggregate to at least the quote's max_funding_amount.
type Settlement struct {
	ID             string
	ExecutionID    string
	FundingChain   Chain
	FundingTxHash  string
	FundingAmount  decimal.Decimal
	SettledAt      time.Time
	VerifiedAt     *time.Time
}

// TreasuryBalance caches the last-observed balance for (chain, asset).
type TreasuryBalance struct {
	Chain           Chain
	Asset           string
	Amount          decimal.Decimal
	LockedAmount    decimal.Decimal
	ReconciledAt    time.Time
}

// Available returns the spendable balance, net of advisory locks.
func (b TreasuryBalance) Available() decimal.Decimal {
	return b.Amount.Sub(b.LockedAmount)
}

// DailySpending tracks monotonically-increasing per-chain spend for a UTC
// calendar date.
type DailySpending struct {
	Chain            Chain
	Date             time.Time
	AmountSpent      decimal.Decimal
	TransactionCount int
}

// CircuitBreakerState models an open or resolved breaker for a chain. A
// chain has at most one open breaker (ResolvedAt == nil) at a time.
type CircuitBreakerState struct {
	ID          string
	Chain       Chain
	Reason      string
	TriggeredAt time.Time
	ResolvedAt  *time.Time
}

func (s CircuitBreakerState) Open() bool {
	return s.ResolvedAt == nil
}

// AuditEventType enumerates the state-changing events the ledger records.
type AuditEventType string

const (
	AuditQuoteGenerated         AuditEventType = "quote_generated"
	AuditQuoteCommitted         AuditEventType = "quote_committed"
	AuditExecutionCompleted     AuditEventType = "execution_completed"
	AuditExecutionFailed        AuditEventType = "execution_failed"
	AuditLimitExceeded          AuditEventType = "limit_exceeded"
	AuditCircuitBreakerTriggered AuditEventType = "circuit_breaker_triggered"
	AuditSettlementReconciled   AuditEventType = "settlement_reconciled"
	AuditOverSettlement         AuditEventType = "over_settlement"
	AuditQuoteExpired           AuditEventType = "quote_expired"
)

// AuditLog is an append-only record of a state-changing event.
type AuditLog struct {
	ID        string
	EventType AuditEventType
	Chain     Chain
	EntityID  string
	UserID    string
	Details   map[string]interface{}
	CreatedAt time.Time
}

// User is a stable identity with optional per-chain wallet bindings.
type User struct {
	ID        string
	CreatedAt time.Time
	Wallets   map[Chain]string
}
