package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gradarchive.org/internal/audit"
	"gradarchive.org/internal/auth"
)

type updateAccountRequest struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	ProfileImageID *string `json:"profile_image_id"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrUnauthenticated)
		return
	}
	account, err := a.svc.GetAccount(r.Context(), id.AccountID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (a *API) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.svc.ListAccounts(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (a *API) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := a.svc.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// handleUpdateAccount lets callers edit their own profile. Managers may edit
// anyone. The manager check reads the role carried by the verified access
// token, so a demotion takes effect within one access-token lifetime.
func (a *API) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrUnauthenticated)
		return
	}
	if id.AccountID != targetID && id.Role != auth.RoleManager {
		handleAuthError(w, r, auth.ErrForbidden)
		return
	}
	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	account, err := a.svc.UpdateAccount(r.Context(), targetID, auth.AccountUpdate{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		ProfileImageID: req.ProfileImageID,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// handleChangeRole is manager-only. The gate reads the role carried by the
// verified access token rather than storage, so a demotion takes effect
// within one access-token lifetime. The single-manager invariant is enforced
// below in the service.
func (a *API) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrUnauthenticated)
		return
	}
	if id.Role != auth.RoleManager {
		handleAuthError(w, r, auth.ErrForbidden)
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	targetID := chi.URLParam(r, "id")
	if err := a.svc.ChangeRole(r.Context(), targetID, req.Role); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.role_changed", map[string]any{
		"target_account_id": targetID,
		"role":              req.Role,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteAccount allows self-deletion; deleting someone else requires
// the delete_account permission.
func (a *API) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrUnauthenticated)
		return
	}
	if id.AccountID != targetID {
		if err := a.requirePermission(r.Context(), auth.PermDeleteAccount); err != nil {
			handleAuthError(w, r, err)
			return
		}
	}
	if err := a.svc.DeleteAccount(r.Context(), targetID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.deleted", map[string]any{
		"target_account_id": targetID,
	})
	w.WriteHeader(http.StatusNoContent)
}
