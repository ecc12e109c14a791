package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

func (l *Ledger) InsertQuote(ctx context.Context, q domain.Quote) (domain.Quote, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	q.CreatedAt, q.UpdatedAt = now, now
	if q.Status == "" {
		q.Status = domain.QuoteStatusPending
	}

	var computeUnits sql.NullInt64
	if q.EstimatedComputeUnits != nil {
		computeUnits = sql.NullInt64{Int64: *q.EstimatedComputeUnits, Valid: true}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO quotes (
			id, user_id, funding_chain, execution_chain, funding_asset, execution_asset,
			max_funding_amount, execution_cost, service_fee, execution_instructions,
			estimated_compute_units, nonce, status, expires_at, payment_address, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		q.ID, q.UserID, string(q.FundingChain), string(q.ExecutionChain), q.FundingAsset, q.ExecutionAsset,
		q.MaxFundingAmount, q.ExecutionCost, q.ServiceFee, q.ExecutionInstructions,
		computeUnits, q.Nonce, string(q.Status), q.ExpiresAt, q.PaymentAddress, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

func scanQuote(row interface{ Scan(dest ...interface{}) error }) (domain.Quote, error) {
	var (
		q            domain.Quote
		fundingChain string
		execChain    string
		status       string
		computeUnits sql.NullInt64
	)
	err := row.Scan(
		&q.ID, &q.UserID, &fundingChain, &execChain, &q.FundingAsset, &q.ExecutionAsset,
		&q.MaxFundingAmount, &q.ExecutionCost, &q.ServiceFee, &q.ExecutionInstructions,
		&computeUnits, &q.Nonce, &status, &q.ExpiresAt, &q.PaymentAddress, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return domain.Quote{}, err
	}
	q.FundingChain = domain.Chain(fundingChain)
	q.ExecutionChain = domain.Chain(execChain)
	q.Status = domain.QuoteStatus(status)
	if computeUnits.Valid {
		q.EstimatedComputeUnits = &computeUnits.Int64
	}
	return q, nil
}

const quoteColumns = `
	id, user_id, funding_chain, execution_chain, funding_asset, execution_asset,
	max_funding_amount, execution_cost, service_fee, execution_instructions,
	estimated_compute_units, nonce, status, expires_at, payment_address, created_at, updated_at
`

func (l *Ledger) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id)
	q, err := scanQuote(row)
	if err == sql.ErrNoRows {
		return domain.Quote{}, storage.ErrNoRows
	}
	return q, err
}

func (l *Ledger) GetQuoteByNonce(ctx context.Context, nonce string) (domain.Quote, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE nonce = $1`, nonce)
	q, err := scanQuote(row)
	if err == sql.ErrNoRows {
		return domain.Quote{}, storage.ErrNoRows
	}
	return q, err
}

// TransitionQuote performs the conditional UPDATE that is the ledger's
// single enforcement point for the quote state machine: zero rows affected
// means either the id doesn't exist or the row wasn't in the expected
// `from` state, both of which are InvalidState from the caller's
// perspective.
func (l *Ledger) TransitionQuote(ctx context.Context, tx storage.Tx, id string, from, to domain.QuoteStatus) error {
	if !domain.ValidStateTransition(from, to) {
		return svcerrors.InvalidState(id, string(from), string(to))
	}

	res, err := l.execer(tx).ExecContext(ctx, `
		UPDATE quotes SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, string(to), id, string(from))
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		current, lookupErr := l.GetQuote(ctx, id)
		actual := "unknown"
		if lookupErr == nil {
			actual = string(current.Status)
		}
		return svcerrors.InvalidState(id, string(from), actual)
	}
	return nil
}

// SweepExpiredQuotes transitions every Pending or Committed quote whose
// expires_at has passed to Expired, returning the affected ids.
func (l *Ledger) SweepExpiredQuotes(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		UPDATE quotes
		SET status = 'expired', updated_at = now()
		WHERE status IN ('pending', 'committed') AND expires_at < $1
		RETURNING id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
