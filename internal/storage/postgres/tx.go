package postgres

import (
	"context"
	"database/sql"

	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
)

// sqlTx adapts *sql.Tx to storage.Tx and gives the Ledger a uniform way to
// extract the *sql.Tx (or fall back to the pool) regardless of whether the
// caller passed one in.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (l *Ledger) execer(tx storage.Tx) execer {
	if tx == nil {
		return l.db
	}
	st, ok := tx.(*sqlTx)
	if !ok || st.tx == nil {
		return l.db
	}
	return st.tx
}

func (l *Ledger) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}
