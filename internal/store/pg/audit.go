package pg

import (
	"context"
	"time"

	"dollhaus.shop/internal/auth"
	"dollhaus.shop/internal/ids"
)

func (s *Store) AppendAudit(ctx context.Context, entry *auth.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs (id, user_id, action, resource_type, resource_id, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, entry.ID, nullIfEmpty(entry.UserID), entry.Action, entry.ResourceType, entry.ResourceID, entry.CreatedAt)
	return mapConstraintErr(err)
}

// PurgeAuditEntries deletes rows older than the retention cutoff. Audit rows
// are append-only, so age is final state and the delete is idempotent.
func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from audit_logs where created_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
