package postgres

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/svcerrors"
)

// LockFunds reserves `amount` against the treasury balance for (chain,
// asset). The WHERE clause re-checks availability inside the same
// statement, so two concurrent callers can never both succeed against an
// insufficient balance.
func (l *Ledger) LockFunds(ctx context.Context, tx storage.Tx, chain domain.Chain, asset string, amount decimal.Decimal) error {
	res, err := l.execer(tx).ExecContext(ctx, `
		UPDATE balances
		SET locked_amount = locked_amount + $1
		WHERE chain = $2 AND asset = $3 AND (amount - locked_amount) >= $1
	`, amount, string(chain), asset)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		bal, lookupErr := l.GetBalance(ctx, chain, asset)
		available := decimal.Zero
		if lookupErr == nil {
			available = bal.Available()
		}
		return svcerrors.InsufficientTreasury(string(chain), amount.String(), available.String())
	}
	return nil
}

func (l *Ledger) GetBalance(ctx context.Context, chain domain.Chain, asset string) (domain.TreasuryBalance, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT chain, asset, amount, locked_amount, reconciled_at
		FROM balances WHERE chain = $1 AND asset = $2
	`, string(chain), asset)

	var (
		b        domain.TreasuryBalance
		chainStr string
	)
	err := row.Scan(&chainStr, &b.Asset, &b.Amount, &b.LockedAmount, &b.ReconciledAt)
	if err == sql.ErrNoRows {
		return domain.TreasuryBalance{}, storage.ErrNoRows
	}
	if err != nil {
		return domain.TreasuryBalance{}, err
	}
	b.Chain = domain.Chain(chainStr)
	return b, nil
}

// SetBalance upserts the observed on-chain balance, as reported by a
// treasury reconciliation sweep. It never touches locked_amount.
func (l *Ledger) SetBalance(ctx context.Context, chain domain.Chain, asset string, amount decimal.Decimal) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO balances (chain, asset, amount, locked_amount, reconciled_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (chain, asset) DO UPDATE
		SET amount = EXCLUDED.amount, reconciled_at = now()
	`, string(chain), asset, amount)
	return err
}
