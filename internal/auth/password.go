package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hasher provides one-way hashing for passwords and for tokens at rest.
// No plaintext secret is ever persisted.
type Hasher struct {
	cost int
}

// NewHasher constructs a Hasher. A cost outside bcrypt's valid range falls
// back to the library default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// HashPassword hashes a plaintext password with bcrypt.
func (h *Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored digest. A
// mismatch returns false, never an error.
func (h *Hasher) VerifyPassword(digest, password string) bool {
	if digest == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// HashToken hashes an opaque token for storage at rest. Tokens are longer
// than the 72 bytes bcrypt consumes, so they are reduced with SHA-256 first;
// the bcrypt salt still makes every digest unique.
func (h *Hasher) HashToken(token string) (string, error) {
	if token == "" {
		return "", errors.New("token is empty")
	}
	hash, err := bcrypt.GenerateFromPassword(preHash(token), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// MatchToken compares a presented raw token against a stored digest.
func (h *Hasher) MatchToken(digest, token string) bool {
	if digest == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), preHash(token)) == nil
}

func preHash(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}

// TokenDigest returns the deterministic SHA-256 hex digest used for reset
// tokens, which are single-use and short-lived enough for a direct lookup.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}