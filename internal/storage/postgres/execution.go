package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
)

// InsertExecution inserts a row keyed by quote_id. The unique index on
// quote_id is the hard idempotency fence: a concurrent second attempt for
// the same quote receives ErrDuplicateExecution and must exit cleanly.
func (l *Ledger) InsertExecution(ctx context.Context, tx storage.Tx, e domain.Execution) (domain.Execution, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = domain.ExecutionStatusPending
	}

	_, err := l.execer(tx).ExecContext(ctx, `
		INSERT INTO executions (id, quote_id, execution_chain, transaction_hash, status, retry_count, executed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.QuoteID, string(e.ExecutionChain), nullString(e.TransactionHash), string(e.Status), e.RetryCount, e.ExecutedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Execution{}, storage.ErrDuplicateExecution
		}
		return domain.Execution{}, err
	}
	return e, nil
}

func (l *Ledger) GetExecutionByQuoteID(ctx context.Context, quoteID string) (domain.Execution, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, quote_id, execution_chain, transaction_hash, status, gas_used, error_message, retry_count, executed_at, completed_at
		FROM executions WHERE quote_id = $1
	`, quoteID)

	var (
		e           domain.Execution
		chain       string
		status      string
		txHash      sql.NullString
		errMessage  sql.NullString
		gasUsed     sql.NullFloat64
		completedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.QuoteID, &chain, &txHash, &status, &gasUsed, &errMessage, &e.RetryCount, &e.ExecutedAt, &completedAt)
	if err == sql.ErrNoRows {
		return domain.Execution{}, storage.ErrNoRows
	}
	if err != nil {
		return domain.Execution{}, err
	}
	e.ExecutionChain = domain.Chain(chain)
	e.Status = domain.ExecutionStatus(status)
	e.TransactionHash = txHash.String
	e.ErrorMessage = errMessage.String
	if gasUsed.Valid {
		e.GasUsed = decimal.NewNullDecimal(decimal.NewFromFloat(gasUsed.Float64))
	}
	if completedAt.Valid {
		t := completedAt.Time
		e.CompletedAt = &t
	}
	return e, nil
}

// GetExecutionByID looks up an execution by its own id, used by the
// settlement aggregator to trace a settlement back to its originating quote.
func (l *Ledger) GetExecutionByID(ctx context.Context, executionID string) (domain.Execution, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, quote_id, execution_chain, transaction_hash, status, gas_used, error_message, retry_count, executed_at, completed_at
		FROM executions WHERE id = $1
	`, executionID)

	var (
		e           domain.Execution
		chain       string
		status      string
		txHash      sql.NullString
		errMessage  sql.NullString
		gasUsed     sql.NullFloat64
		completedAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.QuoteID, &chain, &txHash, &status, &gasUsed, &errMessage, &e.RetryCount, &e.ExecutedAt, &completedAt)
	if err == sql.ErrNoRows {
		return domain.Execution{}, storage.ErrNoRows
	}
	if err != nil {
		return domain.Execution{}, err
	}
	e.ExecutionChain = domain.Chain(chain)
	e.Status = domain.ExecutionStatus(status)
	e.TransactionHash = txHash.String
	e.ErrorMessage = errMessage.String
	if gasUsed.Valid {
		e.GasUsed = decimal.NewNullDecimal(decimal.NewFromFloat(gasUsed.Float64))
	}
	if completedAt.Valid {
		t := completedAt.Time
		e.CompletedAt = &t
	}
	return e, nil
}

// CompleteExecution marks the row Success or Failed and stamps completed_at.
// Callers invoke this inside the same ledger transaction that transitions
// the quote and increments daily spending.
func (l *Ledger) CompleteExecution(ctx context.Context, tx storage.Tx, executionID string, status domain.ExecutionStatus, txHash, errMessage string, gasUsed decimal.NullDecimal) error {
	var gasUsedVal interface{}
	if gasUsed.Valid {
		gasUsedVal = gasUsed.Decimal
	}
	_, err := l.execer(tx).ExecContext(ctx, `
		UPDATE executions
		SET status = $1, transaction_hash = $2, error_message = $3, gas_used = $4, completed_at = now()
		WHERE id = $5
	`, string(status), nullString(txHash), nullString(errMessage), gasUsedVal, executionID)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if ok := asPQError(err, &pqErr); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key value")
}

func asPQError(err error, target **pq.Error) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	*target = pqErr
	return true
}
