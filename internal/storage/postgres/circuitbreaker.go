package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
)

func (l *Ledger) GetOpenCircuitBreaker(ctx context.Context, chain domain.Chain) (*domain.CircuitBreakerState, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, chain, reason, triggered_at, resolved_at
		FROM circuit_breaker_state WHERE chain = $1 AND resolved_at IS NULL
	`, string(chain))

	var (
		s          domain.CircuitBreakerState
		chainStr   string
		resolvedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &chainStr, &s.Reason, &s.TriggeredAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Chain = domain.Chain(chainStr)
	if resolvedAt.Valid {
		s.ResolvedAt = &resolvedAt.Time
	}
	return &s, nil
}

// TriggerCircuitBreaker opens a breaker for chain. The partial unique index
// on (chain) WHERE resolved_at IS NULL means a second trigger attempt while
// one is already open hits a unique violation rather than creating a
// duplicate open breaker; that violation is caught here and the already-open
// breaker is returned instead of an error.
func (l *Ledger) TriggerCircuitBreaker(ctx context.Context, chain domain.Chain, reason string) (domain.CircuitBreakerState, error) {
	s := domain.CircuitBreakerState{
		ID:     uuid.NewString(),
		Chain:  chain,
		Reason: reason,
	}
	row := l.db.QueryRowContext(ctx, `
		INSERT INTO circuit_breaker_state (id, chain, reason)
		VALUES ($1, $2, $3)
		RETURNING triggered_at
	`, s.ID, string(s.Chain), s.Reason)
	if err := row.Scan(&s.TriggeredAt); err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := l.GetOpenCircuitBreaker(ctx, chain)
			if lookupErr == nil && existing != nil {
				return *existing, nil
			}
		}
		return domain.CircuitBreakerState{}, err
	}
	return s, nil
}

// ResolveCircuitBreaker closes the given breaker; only an operator action
// should call this, never an automated process.
func (l *Ledger) ResolveCircuitBreaker(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE circuit_breaker_state SET resolved_at = now() WHERE id = $1 AND resolved_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrNoRows
	}
	return nil
}
