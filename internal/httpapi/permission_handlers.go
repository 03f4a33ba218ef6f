package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gradarchive.org/internal/audit"
	"gradarchive.org/internal/auth"
)

type grantRequest struct {
	Key string `json:"key"`
}

type addScopeRequest struct {
	CollegeID string `json:"college_id"`
}

func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.authz.ListPermissions(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (a *API) handleListGrants(w http.ResponseWriter, r *http.Request) {
	if err := a.requirePermission(r.Context(), auth.PermPermissions); err != nil {
		handleAuthError(w, r, err)
		return
	}
	grants, err := a.authz.ListGrants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (a *API) handleGrant(w http.ResponseWriter, r *http.Request) {
	if err := a.requirePermission(r.Context(), auth.PermPermissions); err != nil {
		handleAuthError(w, r, err)
		return
	}
	var req grantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	accountID := chi.URLParam(r, "id")
	grant, err := a.authz.Grant(r.Context(), accountID, strings.TrimSpace(req.Key))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "permission.granted", map[string]any{
		"target_account_id": accountID,
		"permission":        req.Key,
	})
	writeJSON(w, http.StatusCreated, grant)
}

func (a *API) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := a.requirePermission(r.Context(), auth.PermPermissions); err != nil {
		handleAuthError(w, r, err)
		return
	}
	accountID := chi.URLParam(r, "id")
	key := chi.URLParam(r, "key")
	if err := a.authz.Revoke(r.Context(), accountID, key); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "permission.revoked", map[string]any{
		"target_account_id": accountID,
		"permission":        key,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListScopes(w http.ResponseWriter, r *http.Request) {
	if err := a.requirePermission(r.Context(), auth.PermPermissions); err != nil {
		handleAuthError(w, r, err)
		return
	}
	scopes, err := a.authz.ListScopes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scopes": scopes})
}

func (a *API) handleAddScope(w http.ResponseWriter, r *http.Request) {
	if err := a.requirePermission(r.Context(), auth.PermPermissions); err != nil {
		handleAuthError(w, r, err)
		return
	}
	var req addScopeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	scope, err := a.authz.AddScope(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.CollegeID))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scope)
}

func (a *API) handleListColleges(w http.ResponseWriter, r *http.Request) {
	colleges, err := a.authz.ListColleges(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"colleges": colleges})
}
