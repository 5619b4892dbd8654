package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dollhaus.shop/internal/ids"
	"dollhaus.shop/internal/obs"
)

const resetTokenBytes = 32

// Notifier delivers a password reset token to the account holder.
type Notifier interface {
	NotifyPasswordReset(ctx context.Context, email, token string) error
}

// logNotifier is the default delivery channel: it logs the event without the
// token value. Deployments plug in a mail-backed Notifier.
type logNotifier struct{}

func (logNotifier) NotifyPasswordReset(_ context.Context, email, _ string) error {
	obs.Logger().Println(fmt.Sprintf(`{"type":"notify","event":"password_reset_requested","email":%q}`, email))
	return nil
}

// RequestReset starts the password reset flow. The caller always observes
// success: a token is persisted and delivered only when the email belongs to
// an active account, so responses cannot enumerate accounts.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !user.Active() {
		return nil
	}
	token, err := ids.NewOpaque(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	now := s.now().UTC()
	reset := &PasswordReset{
		ID:        ids.New(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}
	if err := s.store.CreatePasswordReset(ctx, reset); err != nil {
		return fmt.Errorf("%w: create password reset: %v", ErrPersistence, err)
	}
	return s.notifier.NotifyPasswordReset(ctx, user.Email, token)
}

// ConsumeReset redeems a reset token exactly once: it sets used_at, rewrites
// the password hash, and revokes every outstanding refresh token for the
// user, all in one transaction. A token moves issued -> consumed and never
// back; expiry is the other terminal state.
func (s *Service) ConsumeReset(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenNotFound
	}
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	record, err := s.store.FindPasswordReset(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	now := s.now().UTC()
	if record.UsedAt != nil {
		return ErrTokenUsed
	}
	if !now.Before(record.ExpiresAt) {
		return ErrTokenExpired
	}
	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	return s.store.ConsumePasswordReset(ctx, token, hash, now)
}
