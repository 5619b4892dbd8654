package auth

import "context"

// Sweep deletes refresh tokens that are expired or revoked and audit rows
// past the retention window. Both deletes key off already-final state, so
// the sweep is idempotent and safe to run concurrently with live traffic.
// It runs out-of-band; a failed sweep never fails a request.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()
	var result SweepResult
	tokens, err := s.store.PurgeRefreshTokens(ctx, now)
	if err != nil {
		return result, err
	}
	result.RefreshTokens = tokens
	entries, err := s.store.PurgeAuditEntries(ctx, now.Add(-s.auditRetention))
	if err != nil {
		return result, err
	}
	result.AuditEntries = entries
	return result, nil
}
