package auth

import "time"

// Account roles. At most one manager account may exist system-wide.
const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// ValidRole reports whether role is one of the supported account roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAdmin, RoleManager:
		return true
	}
	return false
}

// Account is an identity record.
type Account struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Verified       bool      `json:"verified"`
	PasswordHash   string    `json:"-"`
	Role           string    `json:"role"`
	ProfileImageID string    `json:"profile_image_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RefreshToken is a live session credential persisted as a one-way digest.
// The raw token is never stored.
type RefreshToken struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"-"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ResetPasswordToken is a one-time password-reset credential. AccountID is
// nullable: the row may outlive its account as an unusable orphan.
type ResetPasswordToken struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"-"`
	AccountID string    `json:"account_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Permission is a named capability from the static catalog.
type Permission struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AccountPermission grants a permission to an account. The (account,
// permission) pair is unique.
type AccountPermission struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	PermissionID string    `json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// PermissionScope narrows an AccountPermission to a single college.
type PermissionScope struct {
	ID                  string    `json:"id"`
	AccountPermissionID string    `json:"account_permission_id"`
	CollegeID           string    `json:"college_id"`
	CreatedAt           time.Time `json:"created_at"`
}

// College is an organizational unit that permission scopes reference.
type College struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountUpdate carries optional profile mutations. Nil fields are left
// untouched.
type AccountUpdate struct {
	FirstName      *string
	LastName       *string
	ProfileImageID *string
}
