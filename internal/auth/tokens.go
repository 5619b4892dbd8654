package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dollhaus.shop/internal/ids"
)

const refreshTokenBytes = 32

type accessTokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueAccessToken signs a short-lived HS256 JWT carrying the user's id and
// email. Verification is stateless: no store read happens on the request path.
func (s *Service) IssueAccessToken(user User) (string, time.Time, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", time.Time{}, errors.New("auth: user id is required")
	}
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)
	claims := accessTokenClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyAccessToken checks the signature and expiry of an access token.
// A bad signature and an expired token yield the same ErrInvalidToken so
// callers cannot probe which check failed. A token is already invalid at
// exactly its expiry second.
func (s *Service) VerifyAccessToken(token string) (AccessClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &accessTokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*accessTokenClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, ErrInvalidToken
	}
	if err := s.validateAccessClaims(claims); err != nil {
		return AccessClaims{}, ErrInvalidToken
	}
	return AccessClaims{
		UserID:    claims.Subject,
		Email:     claims.Email,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// validateAccessClaims applies expiry under the service clock. The boundary
// is strict: now must be before exp, so a token dies on its expiry second.
func (s *Service) validateAccessClaims(claims *accessTokenClaims) error {
	if s.issuer != "" && claims.Issuer != s.issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := s.now().UTC()
	if !now.Before(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

// IssueRefreshToken generates an opaque random token and persists it with
// the configured days-scale TTL.
func (s *Service) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("auth: user id is required")
	}
	rec, err := s.newRefreshRecord(userID)
	if err != nil {
		return "", err
	}
	if err := s.store.CreateRefreshToken(ctx, rec); err != nil {
		return "", fmt.Errorf("%w: create refresh token: %v", ErrPersistence, err)
	}
	return rec.Token, nil
}

// RotateRefreshToken exchanges a live refresh token for a new token pair.
// The old token is revoked and the replacement inserted in one transaction;
// a raced second rotation of the same token fails with ErrTokenRevoked.
func (s *Service) RotateRefreshToken(ctx context.Context, oldToken string) (TokenPair, error) {
	oldToken = strings.TrimSpace(oldToken)
	if oldToken == "" {
		return TokenPair{}, ErrTokenNotFound
	}
	record, err := s.store.FindRefreshToken(ctx, oldToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrTokenNotFound
		}
		return TokenPair{}, err
	}
	now := s.now().UTC()
	if record.RevokedAt != nil {
		return TokenPair{}, ErrTokenRevoked
	}
	if !now.Before(record.ExpiresAt) {
		return TokenPair{}, ErrTokenExpired
	}

	user, err := s.store.GetUser(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrTokenNotFound
		}
		return TokenPair{}, err
	}
	if !user.Active() {
		return TokenPair{}, ErrUserInactive
	}

	access, accessExp, err := s.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	next, err := s.newRefreshRecord(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RotateRefreshToken(ctx, oldToken, next, now); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     next.Token,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

// RevokeRefreshToken marks the token revoked. Revoking an already-revoked
// token is a no-op; only an unknown token is an error.
func (s *Service) RevokeRefreshToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenNotFound
	}
	_, err := s.store.RevokeRefreshToken(ctx, token, s.now().UTC())
	return err
}

func (s *Service) mintPair(ctx context.Context, user User) (TokenPair, error) {
	access, accessExp, err := s.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	rec, err := s.newRefreshRecord(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.CreateRefreshToken(ctx, rec); err != nil {
		return TokenPair{}, fmt.Errorf("%w: create refresh token: %v", ErrPersistence, err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     rec.Token,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

func (s *Service) newRefreshRecord(userID string) (*RefreshToken, error) {
	opaque, err := ids.NewOpaque(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now().UTC()
	return &RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		Token:     opaque,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}, nil
}
