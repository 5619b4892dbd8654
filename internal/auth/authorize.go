package auth

import (
	"context"
	"errors"
	"strings"
)

// UserHasPermission reports whether any of the user's roles carries the
// permission. The membership test is one join query in the store, never a
// per-role loop. An inactive user fails every check with ErrUserInactive.
func (s *Service) UserHasPermission(ctx context.Context, userID, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("auth: permission key is required")
	}
	if err := s.requireActive(ctx, userID); err != nil {
		return false, err
	}
	perms, err := s.store.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == key {
			return true, nil
		}
	}
	return false, nil
}

// UserHasRole reports whether the user is directly assigned the role.
func (s *Service) UserHasRole(ctx context.Context, userID, roleName string) (bool, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return false, errors.New("auth: role name is required")
	}
	if err := s.requireActive(ctx, userID); err != nil {
		return false, err
	}
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == roleName {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) requireActive(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrNotFound
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Active() {
		return ErrUserInactive
	}
	return nil
}

// Principal is a resolved identity with its permission set, loaded once per
// request by the HTTP layer.
type Principal struct {
	User        User
	Permissions map[string]struct{}
}

// HasPermission checks the precomputed permission set.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

// Principal loads the user and resolves permissions. Inactive users resolve
// to ErrUserInactive so a stale access token cannot outlive deactivation.
func (s *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	if !user.Active() {
		return Principal{}, ErrUserInactive
	}
	keys, err := s.store.UserPermissions(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return Principal{User: user, Permissions: set}, nil
}

// AuthenticateToken validates an access token and loads the principal.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (Principal, error) {
	claims, err := s.VerifyAccessToken(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	principal, err := s.Principal(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	return principal, nil
}
