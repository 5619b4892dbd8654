package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
// Implementations must enforce the unique constraints from the schema
// (users.email, roles.name, permissions.key, refresh_tokens.token,
// password_resets.token, and both join-table pairs) and report violations
// as ErrConflict.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, email, passwordHash, status string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id string) error

	// Roles and permissions.
	CreateRole(ctx context.Context, name, description string) (Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id string) error
	EnsurePermissions(ctx context.Context, perms []Permission) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	SetRolePermissions(ctx context.Context, roleID string, keys []string) error
	RolePermissions(ctx context.Context, roleID string) ([]Permission, error)
	AssignRole(ctx context.Context, userID, roleID string) (UserRoleAssignment, error)
	RemoveAssignment(ctx context.Context, userID, roleID string) error
	ListAssignments(ctx context.Context, userID string) ([]UserRoleAssignment, error)
	// UserPermissions resolves the user's permission keys in a single
	// set-membership query across both join tables, never per-role lookups.
	UserPermissions(ctx context.Context, userID string) ([]string, error)
	UserRoles(ctx context.Context, userID string) ([]string, error)

	// Refresh tokens.
	CreateRefreshToken(ctx context.Context, tok *RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	// RevokeRefreshToken sets revoked_at via compare-and-set; the bool
	// reports whether this call performed the revocation.
	RevokeRefreshToken(ctx context.Context, token string, now time.Time) (bool, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error)
	// RotateRefreshToken atomically revokes the old live token and inserts
	// the replacement in one transaction. The guard is a conditional update
	// on revoked_at, so of N concurrent rotations of the same token exactly
	// one commits; the rest observe ErrTokenRevoked.
	RotateRefreshToken(ctx context.Context, oldToken string, next *RefreshToken, now time.Time) error

	// Password resets.
	CreatePasswordReset(ctx context.Context, reset *PasswordReset) error
	FindPasswordReset(ctx context.Context, token string) (*PasswordReset, error)
	// ConsumePasswordReset marks the reset used, rewrites the user's
	// password hash, and revokes all their refresh tokens in one
	// transaction. ErrTokenUsed when the conditional update misses.
	ConsumePasswordReset(ctx context.Context, token, passwordHash string, now time.Time) error

	// Audit.
	AppendAudit(ctx context.Context, entry *AuditEntry) error

	// Cleanup sweep. Both deletes key off already-final state, so they are
	// idempotent and safe alongside live traffic.
	PurgeRefreshTokens(ctx context.Context, now time.Time) (int64, error)
	PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error)
}

// UserUpdate carries optional field changes; nil fields are left untouched.
type UserUpdate struct {
	Email    *string
	Password *string
	Status   *string
}

// RoleUpdate carries optional field changes.
type RoleUpdate struct {
	Name        *string
	Description *string
}
