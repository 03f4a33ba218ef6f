package auth

import "context"

// Store describes the persistence operations required by the auth subsystem.
// The database is the single source of truth: no token or permission is
// cached in memory, so every check re-reads storage.
type Store interface {
	Accounts(ctx context.Context) AccountStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
	ResetTokens(ctx context.Context) ResetTokenStore
	Permissions(ctx context.Context) PermissionStore
	Colleges(ctx context.Context) CollegeStore
}

// AccountStore manages identity records. Email uniqueness is enforced
// atomically at the storage layer; service-level pre-checks are only a UX
// optimization.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	Find(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	Update(ctx context.Context, id string, upd AccountUpdate) (*Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRole(ctx context.Context, id, role string) error
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role string) (int, error)
}

// RefreshTokenStore manages hashed refresh token records. An account may
// hold several live records at once (one per device).
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	ListByAccount(ctx context.Context, accountID string) ([]*RefreshToken, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// ResetTokenStore manages hashed single-use password-reset records.
type ResetTokenStore interface {
	Create(ctx context.Context, tok *ResetPasswordToken) error
	FindByDigest(ctx context.Context, digest string) (*ResetPasswordToken, error)
	Delete(ctx context.Context, id string) error
}

// PermissionStore manages the permission catalog, account grants and their
// college scopes.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
	FindByKey(ctx context.Context, key string) (*Permission, error)
	Grant(ctx context.Context, accountID, permissionID string) (*AccountPermission, error)
	Revoke(ctx context.Context, accountID, permissionID string) error
	GrantsForAccount(ctx context.Context, accountID string) ([]*AccountPermission, error)
	GrantExists(ctx context.Context, accountID, permissionID string) (bool, error)
	AddScope(ctx context.Context, accountPermissionID, collegeID string) (*PermissionScope, error)
	ScopesForGrant(ctx context.Context, accountPermissionID string) ([]*PermissionScope, error)
}

// CollegeStore reads the organizational unit catalog.
type CollegeStore interface {
	List(ctx context.Context) ([]*College, error)
	Find(ctx context.Context, id string) (*College, error)
}

// ProfileImageStore is consumed by the best-effort cleanup that runs after an
// account deletion unlinks its profile image.
type ProfileImageStore interface {
	Delete(ctx context.Context, id string) error
}
