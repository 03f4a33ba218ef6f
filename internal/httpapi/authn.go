package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gradarchive.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth verifies the access token on protected routes and installs the
// caller's identity into the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.codec.Verify(auth.KindAccess, token)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		ctx := auth.ContextWithIdentity(r.Context(), auth.Identity{
			AccountID: claims.Subject,
			Role:      claims.Role,
		})
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission enforces a permission for the authenticated caller.
// Managers pass every check.
func (a *API) requirePermission(ctx context.Context, perm string) error {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return auth.ErrUnauthenticated
	}
	allowed, err := a.authz.HasPermission(ctx, id.AccountID, perm)
	if err != nil {
		return err
	}
	if !allowed {
		return auth.ErrForbidden
	}
	return nil
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
