package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
)

func (l *Ledger) InsertSettlement(ctx context.Context, s domain.Settlement) (domain.Settlement, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SettledAt.IsZero() {
		s.SettledAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO settlements (id, execution_id, funding_chain, funding_txn_hash, funding_amount, settled_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, s.ID, s.ExecutionID, string(s.FundingChain), s.FundingTxHash, s.FundingAmount, s.SettledAt)
	if err != nil {
		return domain.Settlement{}, err
	}
	return s, nil
}

func (l *Ledger) SumUnverifiedSettlements(ctx context.Context, executionID string) (decimal.Decimal, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(funding_amount), 0)
		FROM settlements WHERE execution_id = $1 AND verified_at IS NULL
	`, executionID)
	var total decimal.Decimal
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (l *Ledger) SumSettlementsByExecution(ctx context.Context, executionID string) (decimal.Decimal, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(funding_amount), 0)
		FROM settlements WHERE execution_id = $1
	`, executionID)
	var total decimal.Decimal
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// UnverifiedSettlementsByChain feeds the settlement aggregator's per-chain
// sweep: it groups nothing itself, leaving aggregation to the caller so the
// caller can batch by (chain, asset) as the aggregator's contract requires.
func (l *Ledger) UnverifiedSettlementsByChain(ctx context.Context, chain domain.Chain) ([]domain.Settlement, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, execution_id, funding_chain, funding_txn_hash, funding_amount, settled_at, verified_at
		FROM settlements WHERE funding_chain = $1 AND verified_at IS NULL
	`, string(chain))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Settlement
	for rows.Next() {
		var (
			s          domain.Settlement
			chainStr   string
			verifiedAt sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.ExecutionID, &chainStr, &s.FundingTxHash, &s.FundingAmount, &s.SettledAt, &verifiedAt); err != nil {
			return nil, err
		}
		s.FundingChain = domain.Chain(chainStr)
		if verifiedAt.Valid {
			t := verifiedAt.Time
			s.VerifiedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (l *Ledger) MarkSettlementsVerified(ctx context.Context, tx storage.Tx, ids []string, verifiedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, verifiedAt)
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+2)
		args = append(args, id)
	}
	query := `UPDATE settlements SET verified_at = $1 WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := l.execer(tx).ExecContext(ctx, query, args...)
	return err
}
