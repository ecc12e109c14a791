package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
)

func (l *Ledger) GetDailySpending(ctx context.Context, chain domain.Chain, date time.Time) (domain.DailySpending, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT chain, date, amount_spent, transaction_count
		FROM daily_spending WHERE chain = $1 AND date = $2
	`, string(chain), date.UTC().Truncate(24*time.Hour))

	var (
		d        domain.DailySpending
		chainStr string
	)
	err := row.Scan(&chainStr, &d.Date, &d.AmountSpent, &d.TransactionCount)
	if err == sql.ErrNoRows {
		return domain.DailySpending{Chain: chain, Date: date.UTC().Truncate(24 * time.Hour), AmountSpent: decimal.Zero}, nil
	}
	if err != nil {
		return domain.DailySpending{}, err
	}
	d.Chain = domain.Chain(chainStr)
	return d, nil
}

// IncrementDailySpending is race-free under concurrent executions against
// the same (chain, date): the ON CONFLICT arm adds to the running total
// rather than replacing it.
func (l *Ledger) IncrementDailySpending(ctx context.Context, tx storage.Tx, chain domain.Chain, date time.Time, amount decimal.Decimal) error {
	_, err := l.execer(tx).ExecContext(ctx, `
		INSERT INTO daily_spending (chain, date, amount_spent, transaction_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (chain, date) DO UPDATE
		SET amount_spent = daily_spending.amount_spent + EXCLUDED.amount_spent,
		    transaction_count = daily_spending.transaction_count + 1
	`, string(chain), date.UTC().Truncate(24*time.Hour), amount)
	return err
}
