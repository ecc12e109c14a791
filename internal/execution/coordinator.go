package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/risk"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

const defaultConfirmationTimeout = 60 * time.Second

// Coordinator runs the shared execution algorithm for a Committed quote:
// idempotency fence via the Execution uniqueness constraint, risk gating,
// build/sign/submit through the resolved Executor, confirmation, and the
// ledger transitions that finalize quote + execution + spending + audit.
type Coordinator struct {
	router *Router
	risk   *risk.Controller
	ledger storage.Ledger
	log    *logging.Logger
}

func NewCoordinator(router *Router, riskCtl *risk.Controller, ledger storage.Ledger, log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.NewDefault("execution-coordinator")
	}
	return &Coordinator{router: router, risk: riskCtl, ledger: ledger, log: log}
}

// Run executes a single committed quote end to end. It returns
// storage.ErrDuplicateExecution when another attempt already won the
// idempotency fence — callers must treat that as already-in-flight, not as
// a failure.
func (c *Coordinator) Run(ctx context.Context, q domain.Quote) error {
	if q.Status != domain.QuoteStatusCommitted {
		return svcerrors.InvalidState(q.ID, string(domain.QuoteStatusCommitted), string(q.Status))
	}
	if len(q.ExecutionInstructions) == 0 {
		return svcerrors.InvalidInput("execution_instructions", "must not be empty")
	}
	if !q.ExecutionCost.IsPositive() {
		return svcerrors.InvalidInput("execution_cost", "must be positive")
	}

	ex, err := c.router.Resolve(ctx, q)
	if err != nil {
		return err
	}

	execRow, err := c.reserve(ctx, q)
	if err != nil {
		return err
	}

	if err := c.risk.CheckExecutionAllowed(ctx, q.ExecutionChain, q.ExecutionCost); err != nil {
		c.fail(ctx, q, execRow.ID, err.Error())
		return err
	}

	txHash, gasUsed, execErr := ex.Execute(ctx, q)
	if execErr != nil {
		c.fail(ctx, q, execRow.ID, execErr.Error())
		return svcerrors.ExecutionFailed(string(q.ExecutionChain), execErr)
	}

	if err := ex.WaitForConfirmation(ctx, txHash, defaultConfirmationTimeout); err != nil {
		// Logged, not fatal: the transaction may still finalize and a
		// later reconciliation pass observes it via GetExecutionByQuoteID.
		c.log.WithField("quote_id", q.ID).WithField("tx_hash", txHash).Warn("confirmation wait timed out")
	}

	return c.succeed(ctx, q, execRow.ID, txHash, gasUsed)
}

// reserve inserts the Pending Execution row. A duplicate-key violation here
// means a concurrent attempt already claimed this quote.
func (c *Coordinator) reserve(ctx context.Context, q domain.Quote) (domain.Execution, error) {
	tx, err := c.ledger.BeginTx(ctx)
	if err != nil {
		return domain.Execution{}, svcerrors.DatabaseError("begin_tx", err)
	}
	execRow, err := c.ledger.InsertExecution(ctx, tx, domain.Execution{
		QuoteID:        q.ID,
		ExecutionChain: q.ExecutionChain,
		Status:         domain.ExecutionStatusPending,
	})
	if err != nil {
		_ = tx.Rollback()
		if err == storage.ErrDuplicateExecution {
			return domain.Execution{}, storage.ErrDuplicateExecution
		}
		return domain.Execution{}, svcerrors.DatabaseError("insert_execution", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Execution{}, svcerrors.DatabaseError("commit_tx", err)
	}
	return execRow, nil
}

// succeed finalizes a successful on-chain transaction: CompleteExecution,
// RecordSpending and TransitionQuote(Committed -> Executed) all happen in
// one transaction so partial finalization is never observable.
func (c *Coordinator) succeed(ctx context.Context, q domain.Quote, executionID, txHash string, gasUsed decimal.Decimal) error {
	tx, err := c.ledger.BeginTx(ctx)
	if err != nil {
		return svcerrors.DatabaseError("begin_tx", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := c.ledger.CompleteExecution(ctx, tx, executionID, domain.ExecutionStatusSuccess, txHash, "", decimal.NewNullDecimal(gasUsed)); err != nil {
		return svcerrors.DatabaseError("complete_execution", err)
	}
	if err := c.risk.RecordSpending(ctx, tx, q.ExecutionChain, q.ExecutionCost); err != nil {
		return err
	}
	if err := c.ledger.TransitionQuote(ctx, tx, q.ID, domain.QuoteStatusCommitted, domain.QuoteStatusExecuted); err != nil {
		return err
	}
	if err := c.ledger.AppendAudit(ctx, tx, domain.AuditLog{
		EventType: domain.AuditExecutionCompleted,
		Chain:     q.ExecutionChain,
		EntityID:  executionID,
		UserID:    q.UserID,
		Details: map[string]interface{}{
			"quote_id": q.ID,
			"tx_hash":  txHash,
			"gas_used": gasUsed.String(),
		},
	}); err != nil {
		return svcerrors.DatabaseError("append_audit", err)
	}

	if err := tx.Commit(); err != nil {
		return svcerrors.DatabaseError("commit_tx", err)
	}
	committed = true
	return nil
}

// fail marks the Execution and Quote as Failed. Errors here are logged but
// not returned: the caller already has the original failure reason and a
// failed finalization write must not mask it.
func (c *Coordinator) fail(ctx context.Context, q domain.Quote, executionID, reason string) {
	tx, err := c.ledger.BeginTx(ctx)
	if err != nil {
		c.log.WithField("quote_id", q.ID).WithField("error", err.Error()).Error("begin_tx failed while marking execution failed")
		return
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := c.ledger.CompleteExecution(ctx, tx, executionID, domain.ExecutionStatusFailed, "", reason, decimal.NullDecimal{}); err != nil {
		c.log.WithField("quote_id", q.ID).WithField("error", err.Error()).Error("complete_execution failed while marking execution failed")
		return
	}
	if err := c.ledger.TransitionQuote(ctx, tx, q.ID, domain.QuoteStatusCommitted, domain.QuoteStatusFailed); err != nil {
		c.log.WithField("quote_id", q.ID).WithField("error", err.Error()).Error("transition_quote failed while marking execution failed")
		return
	}
	if err := c.ledger.AppendAudit(ctx, tx, domain.AuditLog{
		EventType: domain.AuditExecutionFailed,
		Chain:     q.ExecutionChain,
		EntityID:  executionID,
		UserID:    q.UserID,
		Details:   map[string]interface{}{"quote_id": q.ID, "reason": reason},
	}); err != nil {
		c.log.WithField("quote_id", q.ID).WithField("error", err.Error()).Error("append_audit failed while marking execution failed")
		return
	}

	if err := tx.Commit(); err != nil {
		c.log.WithField("quote_id", q.ID).WithField("error", err.Error()).Error("commit_tx failed while marking execution failed")
		return
	}
	committed = true
}
