package httpapi

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dollhaus.shop/internal/auth"
	"dollhaus.shop/internal/ids"
)

// memStore backs the handler tests with the same constraint semantics as the
// PostgreSQL store.
type memStore struct {
	mu        sync.Mutex
	users     map[string]auth.User
	roles     map[string]auth.Role
	perms     map[string]auth.Permission
	rolePerms map[string]map[string]struct{}
	userRoles map[string]map[string]time.Time
	refresh   map[string]*auth.RefreshToken
	resets    map[string]*auth.PasswordReset
	audits    []auth.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]auth.User),
		roles:     make(map[string]auth.Role),
		perms:     make(map[string]auth.Permission),
		rolePerms: make(map[string]map[string]struct{}),
		userRoles: make(map[string]map[string]time.Time),
		refresh:   make(map[string]*auth.RefreshToken),
		resets:    make(map[string]*auth.PasswordReset),
	}
}

var _ auth.Store = (*memStore)(nil)

func (m *memStore) CreateUser(_ context.Context, email, passwordHash, status string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return auth.User{}, auth.ErrConflict
		}
	}
	now := time.Now().UTC()
	user := auth.User{ID: ids.New(), Email: email, PasswordHash: passwordHash, Status: status, CreatedAt: now, UpdatedAt: now}
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) GetUser(_ context.Context, id string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

func (m *memStore) ListUsers(_ context.Context) ([]auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]auth.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (m *memStore) UpdateUser(_ context.Context, id string, upd auth.UserUpdate) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Password != nil {
		u.PasswordHash = *upd.Password
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return u, nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) CreateRole(_ context.Context, name, description string) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == name {
			return auth.Role{}, auth.ErrConflict
		}
	}
	now := time.Now().UTC()
	role := auth.Role{ID: ids.New(), Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	m.roles[role.ID] = role
	return role, nil
}

func (m *memStore) GetRole(_ context.Context, id string) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	return r, nil
}

func (m *memStore) ListRoles(_ context.Context) ([]auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles := make([]auth.Role, 0, len(m.roles))
	for _, r := range m.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (m *memStore) UpdateRole(_ context.Context, id string, upd auth.RoleUpdate) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	r.UpdatedAt = time.Now().UTC()
	m.roles[id] = r
	return r, nil
}

func (m *memStore) DeleteRole(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rolePerms, id)
	return nil
}

func (m *memStore) EnsurePermissions(_ context.Context, perms []auth.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range perms {
		if _, ok := m.perms[p.Key]; ok {
			continue
		}
		if p.ID == "" {
			p.ID = ids.New()
		}
		m.perms[p.Key] = p
	}
	return nil
}

func (m *memStore) ListPermissions(_ context.Context) ([]auth.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	perms := make([]auth.Permission, 0, len(m.perms))
	for _, p := range m.perms {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Key < perms[j].Key })
	return perms, nil
}

func (m *memStore) SetRolePermissions(_ context.Context, roleID string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := m.perms[k]; !ok {
			return fmt.Errorf("%w: permission %s not found", auth.ErrNotFound, k)
		}
		set[k] = struct{}{}
	}
	m.rolePerms[roleID] = set
	return nil
}

func (m *memStore) RolePermissions(_ context.Context, roleID string) ([]auth.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var perms []auth.Permission
	for k := range m.rolePerms[roleID] {
		perms = append(perms, m.perms[k])
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Key < perms[j].Key })
	return perms, nil
}

func (m *memStore) AssignRole(_ context.Context, userID, roleID string) (auth.UserRoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return auth.UserRoleAssignment{}, auth.ErrNotFound
	}
	if _, ok := m.roles[roleID]; !ok {
		return auth.UserRoleAssignment{}, auth.ErrNotFound
	}
	assigned, ok := m.userRoles[userID]
	if !ok {
		assigned = make(map[string]time.Time)
		m.userRoles[userID] = assigned
	}
	if _, ok := assigned[roleID]; ok {
		return auth.UserRoleAssignment{}, auth.ErrConflict
	}
	now := time.Now().UTC()
	assigned[roleID] = now
	return auth.UserRoleAssignment{UserID: userID, RoleID: roleID, CreatedAt: now}, nil
}

func (m *memStore) RemoveAssignment(_ context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	assigned := m.userRoles[userID]
	if _, ok := assigned[roleID]; !ok {
		return auth.ErrNotFound
	}
	delete(assigned, roleID)
	return nil
}

func (m *memStore) ListAssignments(_ context.Context, userID string) ([]auth.UserRoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []auth.UserRoleAssignment
	for roleID, at := range m.userRoles[userID] {
		out = append(out, auth.UserRoleAssignment{UserID: userID, RoleID: roleID, CreatedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

func (m *memStore) UserPermissions(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]struct{})
	for roleID := range m.userRoles[userID] {
		for k := range m.rolePerms[roleID] {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) UserRoles(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for roleID := range m.userRoles[userID] {
		names = append(names, m.roles[roleID].Name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memStore) CreateRefreshToken(_ context.Context, tok *auth.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.refresh[tok.Token]; ok {
		return auth.ErrConflict
	}
	cp := *tok
	m.refresh[tok.Token] = &cp
	return nil
}

func (m *memStore) FindRefreshToken(_ context.Context, token string) (*auth.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.refresh[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (m *memStore) RevokeRefreshToken(_ context.Context, token string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.refresh[token]
	if !ok {
		return false, auth.ErrTokenNotFound
	}
	if tok.RevokedAt != nil {
		return false, nil
	}
	tok.RevokedAt = &now
	return true, nil
}

func (m *memStore) RevokeUserRefreshTokens(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, tok := range m.refresh {
		if tok.UserID == userID && tok.RevokedAt == nil {
			tok.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memStore) RotateRefreshToken(_ context.Context, oldToken string, next *auth.RefreshToken, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.refresh[oldToken]
	if !ok || tok.RevokedAt != nil || !tok.ExpiresAt.After(now) {
		return auth.ErrTokenRevoked
	}
	tok.RevokedAt = &now
	cp := *next
	m.refresh[next.Token] = &cp
	return nil
}

func (m *memStore) CreatePasswordReset(_ context.Context, reset *auth.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resets[reset.Token]; ok {
		return auth.ErrConflict
	}
	cp := *reset
	m.resets[reset.Token] = &cp
	return nil
}

func (m *memStore) FindPasswordReset(_ context.Context, token string) (*auth.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset, ok := m.resets[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *reset
	return &cp, nil
}

func (m *memStore) ConsumePasswordReset(_ context.Context, token, passwordHash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset, ok := m.resets[token]
	if !ok || reset.UsedAt != nil || !reset.ExpiresAt.After(now) {
		return auth.ErrTokenUsed
	}
	user, ok := m.users[reset.UserID]
	if !ok {
		return auth.ErrNotFound
	}
	reset.UsedAt = &now
	user.PasswordHash = passwordHash
	user.UpdatedAt = now
	m.users[user.ID] = user
	for _, tok := range m.refresh {
		if tok.UserID == user.ID && tok.RevokedAt == nil {
			tok.RevokedAt = &now
		}
	}
	return nil
}

func (m *memStore) AppendAudit(_ context.Context, entry *auth.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	m.audits = append(m.audits, *entry)
	return nil
}

func (m *memStore) PurgeRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, tok := range m.refresh {
		if tok.RevokedAt != nil || tok.ExpiresAt.Before(now) {
			delete(m.refresh, key)
			n++
		}
	}
	return n, nil
}

func (m *memStore) PurgeAuditEntries(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []auth.AuditEntry
	var n int64
	for _, e := range m.audits {
		if e.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.audits = kept
	return n, nil
}
