package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"gradarchive.org/internal/auth"
	"gradarchive.org/internal/obs"
)

// AuthService is the slice of the auth orchestrator the HTTP layer uses.
// Declared here so handler tests can substitute a stub.
type AuthService interface {
	Register(ctx context.Context, firstName, lastName, email, password string) (*auth.Account, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshAccessToken(ctx context.Context, refreshToken string) (*auth.Session, error)
	ForgetPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error

	GetAccount(ctx context.Context, id string) (*auth.Account, error)
	ListAccounts(ctx context.Context) ([]*auth.Account, error)
	UpdateAccount(ctx context.Context, id string, upd auth.AccountUpdate) (*auth.Account, error)
	ChangeRole(ctx context.Context, id, role string) error
	DeleteAccount(ctx context.Context, id string) error
}

// Authorizer answers permission questions and manages grants.
type Authorizer interface {
	HasPermission(ctx context.Context, accountID, permissionKey string) (bool, error)
	Grant(ctx context.Context, accountID, permissionKey string) (*auth.AccountPermission, error)
	Revoke(ctx context.Context, accountID, permissionKey string) error
	ListPermissions(ctx context.Context) ([]auth.Permission, error)
	ListGrants(ctx context.Context, accountID string) ([]*auth.AccountPermission, error)
	ListScopes(ctx context.Context, accountPermissionID string) ([]*auth.PermissionScope, error)
	AddScope(ctx context.Context, accountPermissionID, collegeID string) (*auth.PermissionScope, error)
	ListColleges(ctx context.Context) ([]*auth.College, error)
}

// ReadyProbe checks downstream dependencies for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options tune request handling limits.
type Options struct {
	Version         string
	RateLimitPerSec int
	RateLimitBurst  int
	MaxBodyBytes    int64
	SecureCookies   bool
}

// API is the HTTP layer.
type API struct {
	router chi.Router
	svc    AuthService
	authz  Authorizer
	codec  *auth.Codec
	probe  ReadyProbe
	opts   Options
	log    zerolog.Logger
}

func New(svc AuthService, authz Authorizer, codec *auth.Codec, probe ReadyProbe, opts Options) *API {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	a := &API{
		svc:   svc,
		authz: authz,
		codec: codec,
		probe: probe,
		opts:  opts,
		log:   obs.With("httpapi"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.requestLogger)
	r.Use(SecurityHeaders)
	r.Use(MaxBodyBytes(opts.MaxBodyBytes))
	if opts.RateLimitPerSec > 0 {
		r.Use(RateLimit(opts.RateLimitPerSec, opts.RateLimitBurst))
	}

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.Post("/logout", a.handleLogout)
			r.Post("/refresh", a.handleRefresh)
			r.Post("/forgot-password", a.handleForgotPassword)
			r.Post("/reset-password", a.handleResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.withAuth)

			r.Get("/me", a.handleMe)
			r.Get("/accounts", a.handleListAccounts)
			r.Get("/accounts/{id}", a.handleGetAccount)
			r.Patch("/accounts/{id}", a.handleUpdateAccount)
			r.Delete("/accounts/{id}", a.handleDeleteAccount)
			r.Patch("/accounts/{id}/role", a.handleChangeRole)

			r.Get("/permissions", a.handleListPermissions)
			r.Get("/accounts/{id}/permissions", a.handleListGrants)
			r.Post("/accounts/{id}/permissions", a.handleGrant)
			r.Delete("/accounts/{id}/permissions/{key}", a.handleRevoke)
			r.Get("/account-permissions/{id}/scopes", a.handleListScopes)
			r.Post("/account-permissions/{id}/scopes", a.handleAddScope)
			r.Get("/colleges", a.handleListColleges)
		})
	})

	a.router = r
	return a
}

// Handler returns the final handler with metrics instrumentation applied.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gradarchive-api",
		"version": a.opts.Version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.probe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
