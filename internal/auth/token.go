package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "gradarchive"

// TokenKind selects one of the three independent signing contexts. Each kind
// carries its own secret and TTL, so a token of one kind never verifies as
// another.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
	KindReset   TokenKind = "reset"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 30 * 24 * time.Hour
	DefaultResetTTL   = 15 * time.Minute
)

// Claims are the JWT claims shared by all three token kinds. Role is only
// set on access tokens; SessionID only on refresh tokens.
type Claims struct {
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid,omitempty"`
	Kind      string `json:"kind"`
	jwt.RegisteredClaims
}

type signingContext struct {
	secret []byte
	ttl    time.Duration
}

// CodecConfig carries the per-kind secrets and optional TTL overrides.
type CodecConfig struct {
	AccessSecret  string
	RefreshSecret string
	ResetSecret   string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
}

// Codec signs and verifies the three token kinds as self-contained,
// tamper-evident, expiring credentials. Revocation is layered on top by the
// token stores; the codec itself is stateless.
type Codec struct {
	contexts map[TokenKind]signingContext
	now      func() time.Time
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. All three secrets are required and must be
// distinct so a leaked token of one kind cannot be replayed as another.
func NewCodec(cfg CodecConfig, opts ...CodecOption) (*Codec, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	reset := strings.TrimSpace(cfg.ResetSecret)
	if access == "" || refresh == "" || reset == "" {
		return nil, errors.New("auth: all three token secrets are required")
	}
	if access == refresh || access == reset || refresh == reset {
		return nil, errors.New("auth: token secrets must be distinct")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	c := &Codec{
		contexts: map[TokenKind]signingContext{
			KindAccess:  {secret: []byte(access), ttl: cfg.AccessTTL},
			KindRefresh: {secret: []byte(refresh), ttl: cfg.RefreshTTL},
			KindReset:   {secret: []byte(reset), ttl: cfg.ResetTTL},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured lifetime for a token kind.
func (c *Codec) TTL(kind TokenKind) time.Duration {
	return c.contexts[kind].ttl
}

// SignAccess mints an access token carrying the account id and its current
// role.
func (c *Codec) SignAccess(accountID, role string) (string, time.Time, error) {
	return c.sign(KindAccess, accountID, Claims{Role: role})
}

// SignRefresh mints a refresh token. Each issuance gets a fresh session id so
// two logins of the same account in the same second produce distinct tokens.
func (c *Codec) SignRefresh(accountID string) (string, time.Time, error) {
	return c.sign(KindRefresh, accountID, Claims{SessionID: uuid.NewString()})
}

// SignReset mints a password-reset token.
func (c *Codec) SignReset(accountID string) (string, time.Time, error) {
	return c.sign(KindReset, accountID, Claims{})
}

func (c *Codec) sign(kind TokenKind, accountID string, claims Claims) (string, time.Time, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", time.Time{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	sc := c.contexts[kind]
	now := c.now().UTC()
	expiresAt := now.Add(sc.ttl)
	claims.Kind = string(kind)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(sc.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

// Verify checks a token's signature, kind and expiry. It fails with
// ErrExpired, ErrInvalidSignature or ErrMalformed; callers must distinguish
// expiry (re-authenticate) from the other two (treat as tampering) without
// leaking which of the latter occurred externally.
func (c *Codec) Verify(kind TokenKind, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformed
	}
	sc := c.contexts[kind]
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return sc.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithIssuer(issuer))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind != string(kind) {
		return nil, ErrInvalidSignature
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}
