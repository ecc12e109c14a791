// Package postgres implements the Ledger against PostgreSQL using
// database/sql directly: conditional UPDATEs with RowsAffected checks
// enforce the quote state machine and fund-locking invariants, and
// INSERT ... ON CONFLICT keeps daily-spending increments race-free.
package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
)

// Ledger implements storage.Ledger backed by PostgreSQL.
type Ledger struct {
	db *sql.DB
}

var _ storage.Ledger = (*Ledger)(nil)

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := l.db.ExecContext(ctx, `INSERT INTO users (id) VALUES ($1)`, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	return l.GetUser(ctx, u.ID)
}

func (l *Ledger) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := l.db.QueryRowContext(ctx, `SELECT id, created_at FROM users WHERE id = $1`, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return domain.User{}, storage.ErrNoRows
		}
		return domain.User{}, err
	}

	rows, err := l.db.QueryContext(ctx, `SELECT chain, address FROM user_wallets WHERE user_id = $1`, id)
	if err != nil {
		return domain.User{}, err
	}
	defer rows.Close()

	u.Wallets = make(map[domain.Chain]string)
	for rows.Next() {
		var chain, addr string
		if err := rows.Scan(&chain, &addr); err != nil {
			return domain.User{}, err
		}
		u.Wallets[domain.Chain(chain)] = addr
	}
	return u, rows.Err()
}

// BindWallet adds a wallet binding. It never overwrites an existing binding
// for (user_id, chain) — wallet bindings are additive, never silently
// replaced.
func (l *Ledger) BindWallet(ctx context.Context, userID string, chain domain.Chain, address string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO user_wallets (user_id, chain, address)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, chain) DO NOTHING
	`, userID, string(chain), address)
	return err
}
