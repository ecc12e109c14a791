// Package webhook implements inbound funding-payment ingestion and the
// bounded-retry execution loop it triggers.
package webhook

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/quote"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

// Notification is a funding-chain payment observation. Amount is the
// cumulative balance an indexer has observed at the quote's payment
// address, not a per-transaction delta — this lets partial funding be
// checked with a single comparison rather than an accumulator table.
type Notification struct {
	Chain           domain.Chain
	TransactionHash string
	Amount          decimal.Decimal
	Memo            string
}

// Ingestor receives payment notifications, advances quotes through
// commit, and records post-execution settlements for the aggregator.
type Ingestor struct {
	engine *quote.Engine
	ledger storage.Ledger
	retry  *Loop
	log    *logging.Logger
}

func NewIngestor(engine *quote.Engine, ledger storage.Ledger, retry *Loop, log *logging.Logger) *Ingestor {
	if log == nil {
		log = logging.NewDefault("webhook-ingestor")
	}
	return &Ingestor{engine: engine, ledger: ledger, retry: retry, log: log}
}

// Ingest implements the Webhook algorithm: validate, commit (idempotent),
// and hand off to the retry loop. Rejections are returned as
// svcerrors.ServiceError so the HTTP layer can surface an explanatory
// message without treating this as a 5xx.
func (in *Ingestor) Ingest(ctx context.Context, n Notification) error {
	if strings.TrimSpace(n.TransactionHash) == "" {
		return svcerrors.InvalidInput("transaction_hash", "must not be empty")
	}

	quoteID := strings.TrimSpace(n.Memo)
	if quoteID == "" {
		return svcerrors.InvalidInput("memo", "does not contain a parseable quote id")
	}

	q, err := in.ledger.GetQuote(ctx, quoteID)
	if err != nil {
		if err == storage.ErrNoRows {
			return svcerrors.QuoteNotFound(quoteID)
		}
		return svcerrors.DatabaseError("get_quote", err)
	}
	if q.FundingChain != n.Chain {
		return svcerrors.InvalidInput("chain", "does not match the quote's funding chain")
	}

	switch q.Status {
	case domain.QuoteStatusFailed, domain.QuoteStatusExpired:
		return svcerrors.InvalidState(quoteID, "pending or committed", string(q.Status))

	case domain.QuoteStatusExecuted, domain.QuoteStatusSettled:
		return in.recordSettlement(ctx, q, n)

	case domain.QuoteStatusPending:
		if n.Amount.LessThan(q.MaxFundingAmount) {
			return svcerrors.InvalidInput("amount", "below the quote's required funding amount; a later payment may still complete it")
		}
		if _, err := in.engine.CommitQuote(ctx, quoteID); err != nil {
			return err
		}
		fallthrough

	case domain.QuoteStatusCommitted:
		in.retry.Spawn(q.ID)
		return nil
	}

	return svcerrors.Internal("unreachable quote status", nil)
}

func (in *Ingestor) recordSettlement(ctx context.Context, q domain.Quote, n Notification) error {
	exec, err := in.ledger.GetExecutionByQuoteID(ctx, q.ID)
	if err != nil {
		if err == storage.ErrNoRows {
			return svcerrors.QuoteNotFound(q.ID)
		}
		return svcerrors.DatabaseError("get_execution_by_quote_id", err)
	}
	if _, err := in.ledger.InsertSettlement(ctx, domain.Settlement{
		ExecutionID:   exec.ID,
		FundingChain:  n.Chain,
		FundingTxHash: n.TransactionHash,
		FundingAmount: n.Amount,
	}); err != nil {
		return svcerrors.DatabaseError("insert_settlement", err)
	}
	return nil
}
