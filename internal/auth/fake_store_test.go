package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dollhaus.shop/internal/ids"
)

// fakeStore is an in-memory Store with the same constraint semantics as the
// PostgreSQL implementation.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]User
	roles     map[string]Role
	perms     map[string]Permission            // by key
	rolePerms map[string]map[string]struct{}   // roleID -> permission keys
	userRoles map[string]map[string]time.Time  // userID -> roleID -> assigned
	refresh   map[string]*RefreshToken         // by token
	resets    map[string]*PasswordReset        // by token
	audits    []AuditEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]User),
		roles:     make(map[string]Role),
		perms:     make(map[string]Permission),
		rolePerms: make(map[string]map[string]struct{}),
		userRoles: make(map[string]map[string]time.Time),
		refresh:   make(map[string]*RefreshToken),
		resets:    make(map[string]*PasswordReset),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, email, passwordHash, status string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return User{}, ErrConflict
		}
	}
	now := time.Now().UTC()
	user := User{ID: ids.New(), Email: email, PasswordHash: passwordHash, Status: status, CreatedAt: now, UpdatedAt: now}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeStore) ListUsers(_ context.Context) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id string, upd UserUpdate) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return User{}, ErrNotFound
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
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) CreateRole(_ context.Context, name, description string) (Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name {
			return Role{}, ErrConflict
		}
	}
	now := time.Now().UTC()
	role := Role{ID: ids.New(), Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	f.roles[role.ID] = role
	return role, nil
}

func (f *fakeStore) GetRole(_ context.Context, id string) (Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) ListRoles(_ context.Context) ([]Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roles := make([]Role, 0, len(f.roles))
	for _, r := range f.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (f *fakeStore) UpdateRole(_ context.Context, id string, upd RoleUpdate) (Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	r.UpdatedAt = time.Now().UTC()
	f.roles[id] = r
	return r, nil
}

func (f *fakeStore) DeleteRole(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[id]; !ok {
		return ErrNotFound
	}
	delete(f.roles, id)
	delete(f.rolePerms, id)
	for _, assigned := range f.userRoles {
		delete(assigned, id)
	}
	return nil
}

func (f *fakeStore) EnsurePermissions(_ context.Context, perms []Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range perms {
		if _, ok := f.perms[p.Key]; ok {
			continue
		}
		if p.ID == "" {
			p.ID = ids.New()
		}
		f.perms[p.Key] = p
	}
	return nil
}

func (f *fakeStore) ListPermissions(_ context.Context) ([]Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	perms := make([]Permission, 0, len(f.perms))
	for _, p := range f.perms {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Key < perms[j].Key })
	return perms, nil
}

func (f *fakeStore) SetRolePermissions(_ context.Context, roleID string, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roles[roleID]; !ok {
		return ErrNotFound
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := f.perms[k]; !ok {
			return fmt.Errorf("%w: permission %s not found", ErrNotFound, k)
		}
		set[k] = struct{}{}
	}
	f.rolePerms[roleID] = set
	return nil
}

func (f *fakeStore) RolePermissions(_ context.Context, roleID string) ([]Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var perms []Permission
	for k := range f.rolePerms[roleID] {
		perms = append(perms, f.perms[k])
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Key < perms[j].Key })
	return perms, nil
}

func (f *fakeStore) AssignRole(_ context.Context, userID, roleID string) (UserRoleAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return UserRoleAssignment{}, ErrNotFound
	}
	if _, ok := f.roles[roleID]; !ok {
		return UserRoleAssignment{}, ErrNotFound
	}
	assigned, ok := f.userRoles[userID]
	if !ok {
		assigned = make(map[string]time.Time)
		f.userRoles[userID] = assigned
	}
	if _, ok := assigned[roleID]; ok {
		return UserRoleAssignment{}, ErrConflict
	}
	now := time.Now().UTC()
	assigned[roleID] = now
	return UserRoleAssignment{UserID: userID, RoleID: roleID, CreatedAt: now}, nil
}

func (f *fakeStore) RemoveAssignment(_ context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	assigned := f.userRoles[userID]
	if _, ok := assigned[roleID]; !ok {
		return ErrNotFound
	}
	delete(assigned, roleID)
	return nil
}

func (f *fakeStore) ListAssignments(_ context.Context, userID string) ([]UserRoleAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []UserRoleAssignment
	for roleID, at := range f.userRoles[userID] {
		out = append(out, UserRoleAssignment{UserID: userID, RoleID: roleID, CreatedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

func (f *fakeStore) UserPermissions(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[string]struct{})
	for roleID := range f.userRoles[userID] {
		for k := range f.rolePerms[roleID] {
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

func (f *fakeStore) UserRoles(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for roleID := range f.userRoles[userID] {
		names = append(names, f.roles[roleID].Name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeStore) CreateRefreshToken(_ context.Context, tok *RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.refresh[tok.Token]; ok {
		return ErrConflict
	}
	cp := *tok
	f.refresh[tok.Token] = &cp
	return nil
}

func (f *fakeStore) FindRefreshToken(_ context.Context, token string) (*RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.refresh[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, token string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.refresh[token]
	if !ok {
		return false, ErrTokenNotFound
	}
	if tok.RevokedAt != nil {
		return false, nil
	}
	tok.RevokedAt = &now
	return true, nil
}

func (f *fakeStore) RevokeUserRefreshTokens(_ context.Context, userID string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, tok := range f.refresh {
		if tok.UserID == userID && tok.RevokedAt == nil {
			tok.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) RotateRefreshToken(_ context.Context, oldToken string, next *RefreshToken, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok, ok := f.refresh[oldToken]
	if !ok || tok.RevokedAt != nil || !tok.ExpiresAt.After(now) {
		return ErrTokenRevoked
	}
	tok.RevokedAt = &now
	cp := *next
	f.refresh[next.Token] = &cp
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, reset *PasswordReset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.resets[reset.Token]; ok {
		return ErrConflict
	}
	cp := *reset
	f.resets[reset.Token] = &cp
	return nil
}

func (f *fakeStore) FindPasswordReset(_ context.Context, token string) (*PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset, ok := f.resets[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *reset
	return &cp, nil
}

func (f *fakeStore) ConsumePasswordReset(_ context.Context, token, passwordHash string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset, ok := f.resets[token]
	if !ok || reset.UsedAt != nil || !reset.ExpiresAt.After(now) {
		return ErrTokenUsed
	}
	user, ok := f.users[reset.UserID]
	if !ok {
		return ErrNotFound
	}
	reset.UsedAt = &now
	user.PasswordHash = passwordHash
	user.UpdatedAt = now
	f.users[user.ID] = user
	for _, tok := range f.refresh {
		if tok.UserID == user.ID && tok.RevokedAt == nil {
			tok.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeStore) AppendAudit(_ context.Context, entry *AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	f.audits = append(f.audits, *entry)
	return nil
}

func (f *fakeStore) PurgeRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for key, tok := range f.refresh {
		if tok.RevokedAt != nil || tok.ExpiresAt.Before(now) {
			delete(f.refresh, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) PurgeAuditEntries(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []AuditEntry
	var n int64
	for _, e := range f.audits {
		if e.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.audits = kept
	return n, nil
}

var _ Store = (*fakeStore)(nil)
