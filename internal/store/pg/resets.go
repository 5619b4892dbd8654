package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dollhaus.shop/internal/auth"
)

func (s *Store) CreatePasswordReset(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := s.db.ExecContext(ctx, `
		insert into password_resets (id, user_id, token, expires_at, created_at)
		values ($1, $2, $3, $4, $5)
	`, reset.ID, reset.UserID, reset.Token, reset.ExpiresAt, reset.CreatedAt)
	return mapConstraintErr(err)
}

func (s *Store) FindPasswordReset(ctx context.Context, token string) (*auth.PasswordReset, error) {
	var (
		reset auth.PasswordReset
		used  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token, expires_at, created_at, used_at
		from password_resets
		where token = $1
	`, token).Scan(&reset.ID, &reset.UserID, &reset.Token, &reset.ExpiresAt, &reset.CreatedAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if used.Valid {
		t := used.Time
		reset.UsedAt = &t
	}
	return &reset, nil
}

// ConsumePasswordReset redeems a reset token in one transaction: the
// conditional update on used_at is the single-use gate, then the password
// hash is rewritten and every outstanding refresh token for the user is
// revoked so stolen sessions die with the old password.
func (s *Store) ConsumePasswordReset(ctx context.Context, token, passwordHash string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	err = tx.QueryRowContext(ctx, `
		update password_resets
		set used_at = $2
		where token = $1 and used_at is null and expires_at > $2
		returning user_id
	`, token, now).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrTokenUsed
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		update users set password_hash = $2, updated_at = now() where id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		update refresh_tokens
		set revoked_at = $2
		where user_id = $1 and revoked_at is null
	`, userID, now); err != nil {
		return err
	}
	return tx.Commit()
}
