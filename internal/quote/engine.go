// Package quote implements the Quote Engine: pricing, dynamic TTL, nonce
// and payment-address issuance, and the state-machine gate that guards
// commit and execution.
package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chigozirigeorge/omnixec-sub000/internal/config"
	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/oracle"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

// Engine prices and gates quotes. It never touches an Executor directly —
// that is the Execution Router's job once a quote is Committed.
type Engine struct {
	ledger    storage.Ledger
	oracle    oracle.Oracle
	profiles  map[domain.Chain]domain.ChainProfile
	allowlist map[domain.ChainPair]bool
	cfg       config.QuoteConfig
	log       *logging.Logger
}

func New(ledger storage.Ledger, prices oracle.Oracle, profiles map[domain.Chain]domain.ChainProfile, allowlist map[domain.ChainPair]bool, cfg config.QuoteConfig, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.NewDefault("quote-engine")
	}
	return &Engine{ledger: ledger, oracle: prices, profiles: profiles, allowlist: allowlist, cfg: cfg, log: log}
}

// GenerateInput carries everything a caller supplies for a new quote.
type GenerateInput struct {
	UserID                string
	FundingChain          domain.Chain
	ExecutionChain        domain.Chain
	FundingAsset          string
	ExecutionAsset        string
	ExecutionInstructions []byte
	EstimatedComputeUnits *int64
}

// GenerateQuote prices and issues a Pending quote.
func (e *Engine) GenerateQuote(ctx context.Context, in GenerateInput) (domain.Quote, error) {
	if in.FundingChain == in.ExecutionChain {
		return domain.Quote{}, svcerrors.SameChainFunding(string(in.FundingChain))
	}
	pair := domain.ChainPair{Funding: in.FundingChain, Execution: in.ExecutionChain}
	if !e.allowlist[pair] {
		return domain.Quote{}, svcerrors.UnsupportedChainPair(string(in.FundingChain), string(in.ExecutionChain))
	}
	if len(in.ExecutionInstructions) == 0 {
		return domain.Quote{}, svcerrors.InvalidInput("execution_instructions", "must not be empty")
	}

	profile, ok := e.profiles[in.ExecutionChain]
	if !ok {
		return domain.Quote{}, svcerrors.InvalidCostModel(string(in.ExecutionChain), "unconfigured")
	}

	var computeUnits int64
	if profile.CostModel == domain.CostModelComputeMetered {
		if in.EstimatedComputeUnits == nil {
			return domain.Quote{}, svcerrors.InvalidInput("estimated_compute_units", "required for compute-metered chains")
		}
		computeUnits = *in.EstimatedComputeUnits
		if computeUnits < profile.MinComputeUnits || computeUnits > profile.MaxComputeUnits {
			return domain.Quote{}, svcerrors.InvalidInput("estimated_compute_units",
				fmt.Sprintf("must be within [%d, %d]", profile.MinComputeUnits, profile.MaxComputeUnits))
		}
	}

	user, err := e.ledger.GetUser(ctx, in.UserID)
	if err != nil {
		return domain.Quote{}, svcerrors.DatabaseError("get_user", err)
	}
	if _, hasWallet := user.Wallets[in.ExecutionChain]; !hasWallet {
		return domain.Quote{}, svcerrors.InvalidInput("user_id", "user has no wallet bound on the execution chain")
	}

	price, err := e.oracle.GetPrice(ctx, in.FundingAsset, in.ExecutionAsset)
	if err != nil {
		return domain.Quote{}, svcerrors.ExternalAPIError("price_oracle", err)
	}

	cost, err := executionCost(profile, computeUnits)
	if err != nil {
		return domain.Quote{}, err
	}
	fee := serviceFee(cost, e.cfg.ServiceFeeRateBps)
	maxFunding := maxFundingAmount(cost, fee, price.Rate, e.cfg.MaxSlippagePct)

	band := ttlConfig{
		aboveFive:    e.cfg.TTLAboveFivePct,
		twoToFive:    e.cfg.TTLTwoToFivePct,
		oneToTwo:     e.cfg.TTLOneToTwoPct,
		atOrBelowOne: e.cfg.TTLAtOrBelowOne,
	}
	expiresAt := time.Now().UTC().Add(ttl(price.ConfidencePct, band))

	nonce := fmt.Sprintf("%s-%d", uuid.NewString(), time.Now().UTC().UnixMilli())

	fundingProfile, ok := e.profiles[in.FundingChain]
	if !ok {
		return domain.Quote{}, svcerrors.InvalidCostModel(string(in.FundingChain), "unconfigured")
	}
	addr, err := paymentAddress(fundingProfile, nonce)
	if err != nil {
		return domain.Quote{}, err
	}

	var computeUnitsPtr *int64
	if profile.CostModel == domain.CostModelComputeMetered {
		computeUnitsPtr = &computeUnits
	}

	q := domain.Quote{
		UserID:                in.UserID,
		FundingChain:          in.FundingChain,
		ExecutionChain:        in.ExecutionChain,
		FundingAsset:          in.FundingAsset,
		ExecutionAsset:        in.ExecutionAsset,
		MaxFundingAmount:      maxFunding,
		ExecutionCost:         cost,
		ServiceFee:            fee,
		ExecutionInstructions: in.ExecutionInstructions,
		EstimatedComputeUnits: computeUnitsPtr,
		Nonce:                 nonce,
		Status:                domain.QuoteStatusPending,
		ExpiresAt:             expiresAt,
		PaymentAddress:        addr,
	}
	if !q.HasValidChainPair() {
		return domain.Quote{}, svcerrors.SameChainFunding(string(in.FundingChain))
	}

	stored, err := e.ledger.InsertQuote(ctx, q)
	if err != nil {
		return domain.Quote{}, svcerrors.DatabaseError("insert_quote", err)
	}

	_ = e.ledger.AppendAudit(ctx, nil, domain.AuditLog{
		EventType: domain.AuditQuoteGenerated,
		Chain:     in.ExecutionChain,
		EntityID:  stored.ID,
		UserID:    in.UserID,
		Details: map[string]interface{}{
			"funding_chain":      string(in.FundingChain),
			"execution_chain":    string(in.ExecutionChain),
			"max_funding_amount": stored.MaxFundingAmount.String(),
		},
	})

	return stored, nil
}

// CommitQuote atomically transitions Pending -> Committed and locks funds
// on the funding chain. It is the single authorization point for
// execution.
func (e *Engine) CommitQuote(ctx context.Context, quoteID string) (domain.Quote, error) {
	q, err := e.ledger.GetQuote(ctx, quoteID)
	if err != nil {
		if err == storage.ErrNoRows {
			return domain.Quote{}, svcerrors.QuoteNotFound(quoteID)
		}
		return domain.Quote{}, svcerrors.DatabaseError("get_quote", err)
	}

	// Idempotent: a quote already Committed is a no-op success.
	if q.Status == domain.QuoteStatusCommitted {
		return q, nil
	}
	if q.Status != domain.QuoteStatusPending {
		return domain.Quote{}, svcerrors.InvalidState(quoteID, string(domain.QuoteStatusPending), string(q.Status))
	}
	if q.IsExpired(time.Now().UTC()) {
		return domain.Quote{}, svcerrors.QuoteExpired(quoteID)
	}

	pair := domain.ChainPair{Funding: q.FundingChain, Execution: q.ExecutionChain}
	if !e.allowlist[pair] {
		return domain.Quote{}, svcerrors.UnsupportedChainPair(string(q.FundingChain), string(q.ExecutionChain))
	}

	tx, err := e.ledger.BeginTx(ctx)
	if err != nil {
		return domain.Quote{}, svcerrors.DatabaseError("begin_tx", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := e.ledger.TransitionQuote(ctx, tx, quoteID, domain.QuoteStatusPending, domain.QuoteStatusCommitted); err != nil {
		return domain.Quote{}, err
	}
	if err := e.ledger.LockFunds(ctx, tx, q.FundingChain, q.FundingAsset, q.MaxFundingAmount); err != nil {
		return domain.Quote{}, err
	}
	if err := e.ledger.AppendAudit(ctx, tx, domain.AuditLog{
		EventType: domain.AuditQuoteCommitted,
		Chain:     q.FundingChain,
		EntityID:  quoteID,
		UserID:    q.UserID,
	}); err != nil {
		return domain.Quote{}, svcerrors.DatabaseError("append_audit", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Quote{}, svcerrors.DatabaseError("commit_tx", err)
	}
	committed = true

	q.Status = domain.QuoteStatusCommitted
	return q, nil
}

// ValidateForExecution returns the quote iff it is Committed and unexpired.
func (e *Engine) ValidateForExecution(ctx context.Context, quoteID string) (domain.Quote, error) {
	q, err := e.ledger.GetQuote(ctx, quoteID)
	if err != nil {
		if err == storage.ErrNoRows {
			return domain.Quote{}, svcerrors.QuoteNotFound(quoteID)
		}
		return domain.Quote{}, svcerrors.DatabaseError("get_quote", err)
	}
	if q.Status != domain.QuoteStatusCommitted {
		return domain.Quote{}, svcerrors.InvalidState(quoteID, string(domain.QuoteStatusCommitted), string(q.Status))
	}
	if q.IsExpired(time.Now().UTC()) {
		return domain.Quote{}, svcerrors.QuoteExpired(quoteID)
	}
	return q, nil
}

// MarkExecuted transitions Committed -> Executed inside tx, for callers
// that have already opened a transaction covering the Execution row and
// DailySpending increment.
func (e *Engine) MarkExecuted(ctx context.Context, tx storage.Tx, quoteID string) error {
	return e.ledger.TransitionQuote(ctx, tx, quoteID, domain.QuoteStatusCommitted, domain.QuoteStatusExecuted)
}

// MarkFailed transitions Committed -> Failed inside tx.
func (e *Engine) MarkFailed(ctx context.Context, tx storage.Tx, quoteID string) error {
	return e.ledger.TransitionQuote(ctx, tx, quoteID, domain.QuoteStatusCommitted, domain.QuoteStatusFailed)
}
