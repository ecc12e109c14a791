package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
)

// AppendAudit writes an append-only audit row, typically inside the same
// transaction as the state change it records.
func (l *Ledger) AppendAudit(ctx context.Context, tx storage.Tx, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = l.execer(tx).ExecContext(ctx, `
		INSERT INTO audit_log (id, event_type, chain, entity_id, user_id, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, string(entry.EventType), nullString(string(entry.Chain)), nullString(entry.EntityID), nullString(entry.UserID), raw, entry.CreatedAt)
	return err
}
