package auth

import "errors"

// Workflow failures surfaced to the HTTP layer. Matched with errors.Is.
var (
	ErrEmailExists     = errors.New("auth: email already registered")
	ErrLoginFailed     = errors.New("auth: login failed")
	ErrTokenNotMatch   = errors.New("auth: refresh token does not match a live session")
	ErrTokenExpired    = errors.New("auth: refresh session expired")
	ErrAccountNotFound = errors.New("auth: account not found")
	ErrEmailNotFound   = errors.New("auth: email not found")
	ErrForbidden       = errors.New("auth: forbidden")
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrManagerExists   = errors.New("auth: a manager account already exists")
	ErrNotFound        = errors.New("auth: not found")
	ErrInvalidInput    = errors.New("auth: invalid input")
)

// Codec failures. Expired is retryable by re-authenticating; the other two
// must be treated as corruption or tampering and are never detailed further.
var (
	ErrExpired          = errors.New("auth: token expired")
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrMalformed        = errors.New("auth: malformed token")
)
