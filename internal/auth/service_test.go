package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"gradarchive.org/internal/mail"
)

type captureMailer struct {
	sent []mail.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newTestService(t *testing.T, store Store, opts ...ServiceOption) (*Service, *captureMailer) {
	t.Helper()
	mailer := &captureMailer{}
	opts = append([]ServiceOption{WithMailer(mailer)}, opts...)
	svc, err := NewService(store, testCodec(t), NewHasher(4), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, mailer
}

func registerAccount(t *testing.T, svc *Service, email string) *Account {
	t.Helper()
	account, err := svc.Register(context.Background(), "Ada", "Lovelace", email, "pass-1234")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return account
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())
	ctx := context.Background()

	registerAccount(t, svc, "ada@example.edu")
	if _, err := svc.Register(ctx, "Eve", "Mallory", "ada@example.edu", "other-pass"); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestRegisterAlwaysCreatesUserRole(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())
	account := registerAccount(t, svc, "ada@example.edu")
	if account.Role != RoleUser {
		t.Fatalf("new account role = %s, want %s", account.Role, RoleUser)
	}
	if account.PasswordHash == "pass-1234" {
		t.Fatal("password stored in plaintext")
	}
}

// Unknown email and wrong password must be indistinguishable so login cannot
// be used to probe which addresses are registered.
func TestLoginFailuresAreUniform(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())
	ctx := context.Background()
	registerAccount(t, svc, "ada@example.edu")

	_, unknownErr := svc.Login(ctx, "nobody@example.edu", "pass-1234")
	_, wrongErr := svc.Login(ctx, "ada@example.edu", "wrong-pass")
	if !errors.Is(unknownErr, ErrLoginFailed) || !errors.Is(wrongErr, ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed for both, got %v and %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatal("login failure messages differ between unknown email and wrong password")
	}
}

func TestLoginIssuesUsableSession(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())
	ctx := context.Background()
	account := registerAccount(t, svc, "ada@example.edu")

	session, err := svc.Login(ctx, "ada@example.edu", "pass-1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.Account.ID != account.ID {
		t.Fatalf("session account = %s, want %s", session.Account.ID, account.ID)
	}

	refreshed, err := svc.RefreshAccessToken(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Fatal("refresh produced no access token")
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())
	ctx := context.Background()
	registerAccount(t, svc, "ada@example.edu")

	session, err := svc.Login(ctx, "ada@example.edu", "pass-1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(ctx, session.RefreshToken); err != nil {
		t.Fatalf("first Logout: %v", err)
	}
	if err := svc.Logout(ctx, session.RefreshToken); err != nil {
		t.Fatalf("second Logout must succeed, got %v", err)
	}
	if _, err := svc.RefreshAccessToken(ctx, session.RefreshToken); !errors.Is(err, ErrTokenNotMatch) {
		t.Fatalf("revoked token refreshed, err = %v", err)
	}
}

func TestLogoutRevokesOnlyItsOwnSession(t *testing.T) {
	svc, _ := newTestService(t, newMemStore())
	ctx := context.Background()
	registerAccount(t, svc, "ada@example.edu")

	laptop, err := svc.Login(ctx, "ada@example.edu", "pass-1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	phone, err := svc.Login(ctx, "ada@example.edu", "pass-1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Logout(ctx, laptop.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.RefreshAccessToken(ctx, phone.RefreshToken); err != nil {
		t.Fatalf("surviving session failed to refresh: %v", err)
	}
}

func TestRefreshReflectsRoleChange(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()
	account := registerAccount(t, svc, "ada@example.edu")

	session, err := svc.Login(ctx, "ada@example.edu", "pass-1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := store.Accounts(ctx).UpdateRole(ctx, account.ID, RoleAdmin); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}

	refreshed, err := svc.RefreshAccessToken(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}
	claims, err := svc.codec.Verify(KindAccess, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("access token role = %s, want %s", claims.Role, RoleAdmin)
	}
}

// Server-side revocation must win even while the JWT itself is still within
// its own validity window.
func TestRefreshHonorsStoredExpiry(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()
	registerAccount(t, svc, "ada@example.edu")

	session, err := svc.Login(ctx, "ada@example.edu", "pass-1234")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	for _, rec := range store.refresh {
		rec.ExpiresAt = time.Now().Add(-time.Minute)
	}
	if _, err := svc.RefreshAccessToken(ctx, session.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestForgetPasswordUnknownEmail(t *testing.T) {
	svc, mailer := newTestService(t, newMemStore())
	if err := svc.ForgetPassword(context.Background(), "nobody@example.edu"); !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatal("no email should be sent for an unknown address")
	}
}

func TestForgetPasswordMailFailureSurfaces(t *testing.T) {
	svc, mailer := newTestService(t, newMemStore())
	mailer.err = errors.New("relay down")
	registerAccount(t, svc, "ada@example.edu")

	if err := svc.ForgetPassword(context.Background(), "ada@example.edu"); err == nil {
		t.Fatal("expected an error when mail delivery fails")
	}
}

func resetTokenFromEmail(t *testing.T, msg mail.Message) string {
	t.Helper()
	idx := strings.Index(msg.Text, "?token=")
	if idx < 0 {
		t.Fatalf("reset email carries no token link: %q", msg.Text)
	}
	raw := strings.TrimSpace(msg.Text[idx+len("?token="):])
	token, err := url.QueryUnescape(strings.Fields(raw)[0])
	if err != nil {
		t.Fatalf("unescape token: %v", err)
	}
	return token
}

func TestResetPasswordFlow(t *testing.T) {
	svc, mailer := newTestService(t, newMemStore())
	ctx := context.Background()
	registerAccount(t, svc, "ada@example.edu")

	if err := svc.ForgetPassword(ctx, "ada@example.edu"); err != nil {
		t.Fatalf("ForgetPassword: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one reset email, got %d", len(mailer.sent))
	}
	token := resetTokenFromEmail(t, mailer.sent[0])

	if err := svc.ResetPassword(ctx, token, "new-pass-5678"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := svc.Login(ctx, "ada@example.edu", "pass-1234"); !errors.Is(err, ErrLoginFailed) {
		t.Fatal("old password still accepted")
	}
	if _, err := svc.Login(ctx, "ada@example.edu", "new-pass-5678"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestResetPasswordTokenIsSingleUse(t *testing.T) {
	svc, mailer := newTestService(t, newMemStore())
	ctx := context.Background()
	registerAccount(t, svc, "ada@example.edu")

	if err := svc.ForgetPassword(ctx, "ada@example.edu"); err != nil {
		t.Fatalf("ForgetPassword: %v", err)
	}
	token := resetTokenFromEmail(t, mailer.sent[0])

	if err := svc.ResetPassword(ctx, token, "new-pass-5678"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "again-9999"); !errors.Is(err, ErrTokenNotMatch) {
		t.Fatalf("reused token accepted, err = %v", err)
	}
}

// A reset record whose account was deleted survives as an orphan but can
// never be consumed.
func TestResetPasswordOrphanedRecord(t *testing.T) {
	store := newMemStore()
	svc, mailer := newTestService(t, store)
	ctx := context.Background()
	account := registerAccount(t, svc, "ada@example.edu")

	if err := svc.ForgetPassword(ctx, "ada@example.edu"); err != nil {
		t.Fatalf("ForgetPassword: %v", err)
	}
	token := resetTokenFromEmail(t, mailer.sent[0])

	if err := store.Accounts(ctx).Delete(ctx, account.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "new-pass-5678"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestResetPasswordExpired(t *testing.T) {
	store := newMemStore()
	svc, mailer := newTestService(t, store)
	ctx := context.Background()
	registerAccount(t, svc, "ada@example.edu")

	if err := svc.ForgetPassword(ctx, "ada@example.edu"); err != nil {
		t.Fatalf("ForgetPassword: %v", err)
	}
	token := resetTokenFromEmail(t, mailer.sent[0])
	for _, rec := range store.resets {
		rec.ExpiresAt = time.Now().Add(-time.Minute)
	}

	if err := svc.ResetPassword(ctx, token, "new-pass-5678"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestPurgeExpiredRefreshTokens(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	ctx := context.Background()
	registerAccount(t, svc, "ada@example.edu")

	if _, err := svc.Login(ctx, "ada@example.edu", "pass-1234"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	for _, rec := range store.refresh {
		rec.ExpiresAt = time.Now().Add(-time.Minute)
	}
	n, err := svc.PurgeExpiredRefreshTokens(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredRefreshTokens: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d records, want 1", n)
	}
}
