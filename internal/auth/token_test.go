package auth

import (
	"errors"
	"testing"
	"time"
)

func testCodec(t *testing.T, opts ...CodecOption) *Codec {
	t.Helper()
	codec, err := NewCodec(CodecConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		ResetSecret:   "reset-secret",
	}, opts...)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func TestCodecRoundTrip(t *testing.T) {
	codec := testCodec(t)

	token, expiresAt, err := codec.SignAccess("acct-1", RoleAdmin)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiration, got %v", expiresAt)
	}

	claims, err := codec.Verify(KindAccess, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "acct-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("unexpected role: %s", claims.Role)
	}
	if claims.Kind != string(KindAccess) {
		t.Fatalf("unexpected kind: %s", claims.Kind)
	}
}

func TestCodecRefreshCarriesSessionID(t *testing.T) {
	codec := testCodec(t)

	first, _, err := codec.SignRefresh("acct-1")
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}
	second, _, err := codec.SignRefresh("acct-1")
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}
	if first == second {
		t.Fatal("two refresh tokens for the same account must differ")
	}

	claims, err := codec.Verify(KindRefresh, first)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.SessionID == "" {
		t.Fatal("refresh token is missing its session id")
	}
}

func TestCodecRejectsCrossKind(t *testing.T) {
	codec := testCodec(t)

	token, _, err := codec.SignRefresh("acct-1")
	if err != nil {
		t.Fatalf("SignRefresh: %v", err)
	}
	if _, err := codec.Verify(KindAccess, token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("refresh token verified as access, err = %v", err)
	}
	if _, err := codec.Verify(KindReset, token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("refresh token verified as reset, err = %v", err)
	}
}

func TestCodecExpiry(t *testing.T) {
	now := time.Now()
	codec := testCodec(t, WithCodecClock(func() time.Time { return now }))

	token, _, err := codec.SignAccess("acct-1", RoleUser)
	if err != nil {
		t.Fatalf("SignAccess: %v", err)
	}

	now = now.Add(DefaultAccessTTL + time.Minute)
	if _, err := codec.Verify(KindAccess, token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestCodecMalformed(t *testing.T) {
	codec := testCodec(t)
	if _, err := codec.Verify(KindAccess, "not-a-jwt"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestCodecRequiresDistinctSecrets(t *testing.T) {
	_, err := NewCodec(CodecConfig{
		AccessSecret:  "same",
		RefreshSecret: "same",
		ResetSecret:   "reset",
	})
	if err == nil {
		t.Fatal("expected error for duplicate secrets")
	}
}
