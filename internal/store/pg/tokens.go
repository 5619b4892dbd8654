package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dollhaus.shop/internal/auth"
)

func (s *Store) CreateRefreshToken(ctx context.Context, tok *auth.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token, expires_at, created_at)
		values ($1, $2, $3, $4, $5)
	`, tok.ID, tok.UserID, tok.Token, tok.ExpiresAt, tok.CreatedAt)
	return mapConstraintErr(err)
}

func (s *Store) FindRefreshToken(ctx context.Context, token string) (*auth.RefreshToken, error) {
	var (
		tok     auth.RefreshToken
		revoked sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token, expires_at, created_at, revoked_at
		from refresh_tokens
		where token = $1
	`, token).Scan(&tok.ID, &tok.UserID, &tok.Token, &tok.ExpiresAt, &tok.CreatedAt, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if revoked.Valid {
		t := revoked.Time
		tok.RevokedAt = &t
	}
	return &tok, nil
}

// RevokeRefreshToken is a compare-and-set on revoked_at: only a null value
// is written, so the column is set at most once and a second call is a no-op.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update refresh_tokens
		set revoked_at = $2
		where token = $1 and revoked_at is null
	`, token, now)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if aff == 1 {
		return true, nil
	}
	var exists int
	err = s.db.QueryRowContext(ctx, `select 1 from refresh_tokens where token = $1`, token).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, auth.ErrTokenNotFound
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		update refresh_tokens
		set revoked_at = $2
		where user_id = $1 and revoked_at is null
	`, userID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RotateRefreshToken revokes the old token and inserts its replacement in
// one transaction. The conditional update is the race gate: of N concurrent
// rotations of the same token only one sees a row flip, the rest get
// ErrTokenRevoked and no replacement token.
func (s *Store) RotateRefreshToken(ctx context.Context, oldToken string, next *auth.RefreshToken, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update refresh_tokens
		set revoked_at = $2
		where token = $1 and revoked_at is null and expires_at > $2
	`, oldToken, now)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrTokenRevoked
	}

	if _, err := tx.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token, expires_at, created_at)
		values ($1, $2, $3, $4, $5)
	`, next.ID, next.UserID, next.Token, next.ExpiresAt, next.CreatedAt); err != nil {
		return mapConstraintErr(err)
	}
	return tx.Commit()
}

// PurgeRefreshTokens removes rows that are already final: expired or revoked.
func (s *Store) PurgeRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from refresh_tokens
		where expires_at < $1 or revoked_at is not null
	`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
