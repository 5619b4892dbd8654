package httpapi

import (
	"context"
	"net/http"
	"strings"

	"dollhaus.shop/internal/audit"
	"dollhaus.shop/internal/auth"
)

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Status   string `json:"status"`
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Status   *string `json:"status"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type updateRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

// recordAudit persists an append-only audit row and mirrors it to the log.
func (a *API) recordAudit(ctx context.Context, action, resourceType, resourceID string) {
	userID, _ := auth.UserIDFromContext(ctx)
	_ = a.svc.AppendAudit(ctx, &auth.AuditEntry{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
	_ = audit.LogEvent(ctx, action, map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	})
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermManageUsers) {
			return
		}
		var req createUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.svc.CreateUser(r.Context(), req.Email, req.Password, req.Status)
		if err != nil {
			handleStoreError(w, err)
			return
		}
		a.recordAudit(r.Context(), "rbac.user.create", "user", user.ID)
		w.Header().Set("Location", "/v1/users/"+user.ID)
		writeJSON(w, http.StatusCreated, user)
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermManageUsers) {
			return
		}
		users, err := a.svc.ListUsers(r.Context())
		if err != nil {
			handleStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	parts := splitResourcePath(r.URL.Path, "/v1/users/")
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleUser(w, r, userID)
	case len(parts) == 2 && parts[1] == "roles":
		a.handleUserRoles(w, r, userID)
	case len(parts) == 3 && parts[1] == "roles":
		a.handleUserRole(w, r, userID, parts[2])
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUser(w http.ResponseWriter, r *http.Request, userID string) {
	if !a.ensurePermission(w, r, auth.PermManageUsers) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		user, err := a.svc.GetUser(r.Context(), userID)
		if err != nil {
			handleStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		var req updateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.svc.UpdateUser(r.Context(), userID, auth.UserUpdate{
			Email:    req.Email,
			Password: req.Password,
			Status:   req.Status,
		})
		if err != nil {
			handleStoreError(w, err)
			return
		}
		a.recordAudit(r.Context(), "rbac.user.update", "user", userID)
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := a.svc.DeleteUser(r.Context(), userID); err != nil {
			handleStoreError(w, err)
			return
		}
		a.recordAudit(r.Context(), "rbac.user.delete", "user", userID)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, userID string) {
	if !a.ensurePermission(w, r, auth.PermManageUsers) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req assignRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		assignment, err := a.svc.AssignRole(r.Context(), userID, req.RoleID)
		if err != nil {
			handleStoreError(w, err)
			return
		}
		a.recordAudit(r.Context(), "rbac.user.assign_role", "user", userID)
		writeJSON(w, http.StatusCreated, assignment)
	case http.MethodGet:
		assignments, err := a.svc.ListAssignments(r.Context(), userID)
		if err != nil {
			handleStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, assignments)
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}
	if !a.ensurePermission(w, r, auth.PermManageUsers) {
		return
	}
	if err := a.svc.RemoveAssignment(r.Context(), userID, roleID); err != nil {
		handleStoreError(w, err)
		return
	}
	a.recordAudit(r.Context(), "rbac.user.remove_role", "user", userID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermManageRoles) {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.CreateRole(r.Context(), req.Name, req.Description)
		if err != nil {
			handleStoreError(w, err)
			return
		}
		a.recordAudit(r.Context(), "rbac.role.create", "role", role.ID)
		w.Header().Set("Location", "/v1/roles/"+role.ID)
		writeJSON(w, http.StatusCreated, role)
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermManageRoles) {
			return
		}
		roles, err := a.svc.ListRoles(r.Context())
		if err != nil {
			handleStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roles)
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	parts := splitResourcePath(r.URL.Path, "/v1/roles/")
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	roleID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleRole(w, r, roleID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, roleID)
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRole(w http.ResponseWriter, r *http.Request, roleID string) {
	if !a.ensurePermission(w, r, auth.PermManageRoles) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		role, err := a.svc.GetRole(r.Context(), roleID)
		if err != nil {
			handleStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPatch:
		var req updateRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.svc.UpdateRole(r.Context(), roleID, auth.RoleUpdate{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			handleStoreError(w, err)
			return
		}
		a.recordAudit(r.Context(), "rbac.role.update", "role", roleID)
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if err := a.svc.DeleteRole(r.Context(), roleID); err != nil {
			handleStoreError(w, err)
			return
		}
		a.recordAudit(r.Context(), "rbac.role.delete", "role", roleID)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	if !a.ensurePermission(w, r, auth.PermManageRoles) {
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req updateRolePermissionsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.svc.SetRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
			handleStoreError(w, err)
			return
		}
		a.recordAudit(r.Context(), "rbac.role.permissions.update", "role", roleID)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		perms, err := a.svc.RolePermissions(r.Context(), roleID)
		if err != nil {
			handleStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, perms)
	default:
		methodNotAllowed(w, http.MethodPut, http.MethodGet)
	}
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, auth.PermManageRoles) {
		return
	}
	perms, err := a.svc.ListPermissions(r.Context())
	if err != nil {
		handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func splitResourcePath(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
