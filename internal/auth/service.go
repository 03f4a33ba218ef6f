package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gradarchive.org/internal/mail"
	"gradarchive.org/internal/obs"
)

// Service implements the account authentication workflows: registration,
// login, logout, access-token refresh and the password-reset lifecycle.
type Service struct {
	store  Store
	codec  *Codec
	hasher *Hasher
	mailer mail.Mailer
	images ProfileImageStore

	resetBaseURL string
	log          zerolog.Logger
	now          func() time.Time
}

// Session is the result of a successful login: the public identity plus the
// freshly issued token pair. The refresh token's raw value exists only here
// and in the client; at rest it is a one-way digest.
type Session struct {
	Account          *Account  `json:"account"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithMailer sets the outbound mail transport. Without one, forgot-password
// requests fail rather than silently dropping the reset email.
func WithMailer(m mail.Mailer) ServiceOption {
	return func(s *Service) { s.mailer = m }
}

// WithProfileImages enables the best-effort profile-image cleanup that runs
// after an account deletion.
func WithProfileImages(store ProfileImageStore) ServiceOption {
	return func(s *Service) { s.images = store }
}

// WithResetBaseURL sets the public URL reset links are built from.
func WithResetBaseURL(u string) ServiceOption {
	return func(s *Service) { s.resetBaseURL = strings.TrimRight(strings.TrimSpace(u), "/") }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth orchestrator.
func NewService(store Store, codec *Codec, hasher *Hasher, opts ...ServiceOption) (*Service, error) {
	if store == nil || codec == nil || hasher == nil {
		return nil, errors.New("auth: store, codec and hasher are required")
	}
	s := &Service{
		store:        store,
		codec:        codec,
		hasher:       hasher,
		resetBaseURL: "http://localhost:8080/reset-password",
		log:          obs.With("auth"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureBuiltins makes sure the static permission catalog exists.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.Permissions(ctx).Ensure(ctx, BuiltinPermissions)
}

// Register creates a new account with role "user". The email pre-check is a
// UX optimization to avoid wasted hashing work; the unique index on the email
// column is the actual source of truth against a create/create race.
func (s *Service) Register(ctx context.Context, firstName, lastName, email, password string) (*Account, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	email = normalizeEmail(email)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	accounts := s.store.Accounts(ctx)
	if _, err := accounts.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, s.infra("register", err)
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return nil, s.infra("register", err)
	}
	account := &Account{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, s.infra("register", err)
	}
	obs.AuthOperations.WithLabelValues("register", "success").Inc()
	return account, nil
}

// Login authenticates credentials and issues a token pair. Unknown email and
// wrong password both return ErrLoginFailed so callers cannot enumerate
// registered addresses.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrLoginFailed
	}
	account, err := s.store.Accounts(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			obs.AuthOperations.WithLabelValues("login", "failed").Inc()
			return nil, ErrLoginFailed
		}
		return nil, s.infra("login", err)
	}
	if !s.hasher.VerifyPassword(account.PasswordHash, password) {
		obs.AuthOperations.WithLabelValues("login", "failed").Inc()
		return nil, ErrLoginFailed
	}

	refreshToken, refreshExp, err := s.issueRefreshToken(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	accessToken, accessExp, err := s.codec.SignAccess(account.ID, account.Role)
	if err != nil {
		return nil, s.infra("login", err)
	}
	obs.AuthOperations.WithLabelValues("login", "success").Inc()
	return &Session{
		Account:          account,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Logout revokes the session behind a refresh token. Once the token's
// signature verifies, logout succeeds whether or not a matching record still
// exists: a concurrent logout may already have revoked it.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.codec.Verify(KindRefresh, refreshToken)
	if err != nil {
		return err
	}
	rec, err := s.findMatchingRefresh(ctx, claims.Subject, refreshToken)
	if err != nil {
		return err
	}
	if rec == nil {
		obs.AuthOperations.WithLabelValues("logout", "noop").Inc()
		return nil
	}
	if err := s.store.RefreshTokens(ctx).Delete(ctx, rec.ID); err != nil {
		return s.infra("logout", err)
	}
	obs.AuthOperations.WithLabelValues("logout", "success").Inc()
	return nil
}

// RefreshAccessToken exchanges a live refresh token for a fresh access token.
// The stored record's expiry takes precedence over the JWT's own, so
// server-side revocation wins; the role is re-read from storage so a role
// change takes effect within one access-token lifetime.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.codec.Verify(KindRefresh, refreshToken)
	if err != nil {
		return nil, err
	}
	rec, err := s.findMatchingRefresh(ctx, claims.Subject, refreshToken)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		obs.AuthOperations.WithLabelValues("refresh", "no_match").Inc()
		return nil, ErrTokenNotMatch
	}
	if s.now().After(rec.ExpiresAt) {
		obs.AuthOperations.WithLabelValues("refresh", "expired").Inc()
		return nil, ErrTokenExpired
	}
	account, err := s.store.Accounts(ctx).Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, s.infra("refresh", err)
	}
	accessToken, accessExp, err := s.codec.SignAccess(account.ID, account.Role)
	if err != nil {
		return nil, s.infra("refresh", err)
	}
	obs.AuthOperations.WithLabelValues("refresh", "success").Inc()
	return &Session{
		Account:          account,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// ForgetPassword mints a reset token and emails a reset link. The raw token
// appears only in the outbound email, never in a response body or log.
func (s *Service) ForgetPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	account, err := s.store.Accounts(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrEmailNotFound
		}
		return s.infra("forget_password", err)
	}
	rawToken, expiresAt, err := s.issueResetToken(ctx, account.ID)
	if err != nil {
		return err
	}
	if s.mailer == nil {
		return s.infra("forget_password", errors.New("no mailer configured"))
	}
	link := s.resetBaseURL + "?token=" + rawToken
	msg := mail.Message{
		To:      account.Email,
		Subject: "Reset your password",
		Text: fmt.Sprintf("Hello %s,\n\nFollow this link to reset your password (valid until %s):\n%s\n",
			account.FirstName, expiresAt.Format(time.RFC1123), link),
		HTML: fmt.Sprintf(`<p>Hello %s,</p><p><a href=%q>Reset your password</a> (valid until %s).</p>`,
			account.FirstName, link, expiresAt.Format(time.RFC1123)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		// Unlike the cleanup side tasks, mail failure here must surface:
		// the caller needs the email to arrive.
		return s.infra("forget_password", err)
	}
	obs.AuthOperations.WithLabelValues("forget_password", "success").Inc()
	return nil
}

// ResetPassword consumes a reset token and replaces the account's password.
// Verification strictly precedes mutation; the store-level record deletion,
// not the JWT expiry, is what prevents token reuse.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.codec.Verify(KindReset, resetToken)
	if err != nil {
		return err
	}
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	rec, err := s.store.ResetTokens(ctx).FindByDigest(ctx, TokenDigest(resetToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenNotMatch
		}
		return s.infra("reset_password", err)
	}
	if s.now().After(rec.ExpiresAt) {
		return ErrTokenExpired
	}
	if rec.AccountID == "" || rec.AccountID != claims.Subject {
		// Orphaned record (account deleted) or a record that does not
		// belong to the token's subject.
		return ErrAccountNotFound
	}
	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return s.infra("reset_password", err)
	}
	if err := s.store.Accounts(ctx).UpdatePassword(ctx, rec.AccountID, hash); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return s.infra("reset_password", err)
	}
	if err := s.store.ResetTokens(ctx).Delete(ctx, rec.ID); err != nil {
		return s.infra("reset_password", err)
	}
	obs.AuthOperations.WithLabelValues("reset_password", "success").Inc()
	return nil
}

// infra logs an infrastructure failure with full detail and returns the
// generic error callers are allowed to see.
func (s *Service) infra(op string, err error) error {
	s.log.Error().Str("operation", op).Err(err).Msg("auth operation failed")
	obs.AuthOperations.WithLabelValues(op, "error").Inc()
	return fmt.Errorf("auth: %s: internal failure", op)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
