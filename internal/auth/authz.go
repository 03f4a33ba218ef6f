package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"gradarchive.org/internal/obs"
)

// Authority answers permission questions and manages grants. Every check
// re-reads storage: no grant is cached, so a revocation is visible to the
// very next request.
//
// PermissionScope rows are persisted and listable here, but HasPermission
// does not filter by college: the check is a flat "does this account hold
// this permission anywhere". Scope enforcement was never wired into the
// authorization path and that gap is preserved deliberately.
type Authority struct {
	store Store
	log   zerolog.Logger
}

// NewAuthority constructs the permission authority.
func NewAuthority(store Store) (*Authority, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	return &Authority{store: store, log: obs.With("authz")}, nil
}

// HasPermission reports whether an account may exercise a permission.
// Manager accounts bypass grant checks unconditionally; every other role
// requires an explicit grant.
func (a *Authority) HasPermission(ctx context.Context, accountID, permissionKey string) (bool, error) {
	accountID = strings.TrimSpace(accountID)
	permissionKey = strings.TrimSpace(permissionKey)
	if accountID == "" || permissionKey == "" {
		return false, fmt.Errorf("%w: account id and permission key are required", ErrInvalidInput)
	}
	account, err := a.store.Accounts(ctx).Find(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, ErrAccountNotFound
		}
		return false, a.infra("has_permission", err)
	}
	if account.Role == RoleManager {
		return true, nil
	}
	perm, err := a.store.Permissions(ctx).FindByKey(ctx, permissionKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, a.infra("has_permission", err)
	}
	granted, err := a.store.Permissions(ctx).GrantExists(ctx, accountID, perm.ID)
	if err != nil {
		return false, a.infra("has_permission", err)
	}
	return granted, nil
}

// Grant gives an account a permission. Granting twice is idempotent: the
// (account, permission) pair is unique.
func (a *Authority) Grant(ctx context.Context, accountID, permissionKey string) (*AccountPermission, error) {
	accountID = strings.TrimSpace(accountID)
	perm, err := a.lookup(ctx, accountID, permissionKey)
	if err != nil {
		return nil, err
	}
	grant, err := a.store.Permissions(ctx).Grant(ctx, accountID, perm.ID)
	if err != nil {
		return nil, a.infra("grant", err)
	}
	return grant, nil
}

// Revoke removes a grant. Revoking an absent grant is a no-op.
func (a *Authority) Revoke(ctx context.Context, accountID, permissionKey string) error {
	accountID = strings.TrimSpace(accountID)
	perm, err := a.lookup(ctx, accountID, permissionKey)
	if err != nil {
		return err
	}
	if err := a.store.Permissions(ctx).Revoke(ctx, accountID, perm.ID); err != nil {
		return a.infra("revoke", err)
	}
	return nil
}

// ListPermissions returns the static catalog.
func (a *Authority) ListPermissions(ctx context.Context) ([]Permission, error) {
	perms, err := a.store.Permissions(ctx).List(ctx)
	if err != nil {
		return nil, a.infra("list_permissions", err)
	}
	return perms, nil
}

// ListGrants returns an account's permission grants.
func (a *Authority) ListGrants(ctx context.Context, accountID string) ([]*AccountPermission, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	grants, err := a.store.Permissions(ctx).GrantsForAccount(ctx, accountID)
	if err != nil {
		return nil, a.infra("list_grants", err)
	}
	return grants, nil
}

// ListScopes returns the college scopes narrowing a grant.
func (a *Authority) ListScopes(ctx context.Context, accountPermissionID string) ([]*PermissionScope, error) {
	accountPermissionID = strings.TrimSpace(accountPermissionID)
	if accountPermissionID == "" {
		return nil, fmt.Errorf("%w: account permission id is required", ErrInvalidInput)
	}
	scopes, err := a.store.Permissions(ctx).ScopesForGrant(ctx, accountPermissionID)
	if err != nil {
		return nil, a.infra("list_scopes", err)
	}
	return scopes, nil
}

// AddScope narrows a grant to a college.
func (a *Authority) AddScope(ctx context.Context, accountPermissionID, collegeID string) (*PermissionScope, error) {
	accountPermissionID = strings.TrimSpace(accountPermissionID)
	collegeID = strings.TrimSpace(collegeID)
	if accountPermissionID == "" || collegeID == "" {
		return nil, fmt.Errorf("%w: account permission id and college id are required", ErrInvalidInput)
	}
	if _, err := a.store.Colleges(ctx).Find(ctx, collegeID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, a.infra("add_scope", err)
	}
	scope, err := a.store.Permissions(ctx).AddScope(ctx, accountPermissionID, collegeID)
	if err != nil {
		return nil, a.infra("add_scope", err)
	}
	return scope, nil
}

// ListColleges returns the organizational unit catalog.
func (a *Authority) ListColleges(ctx context.Context) ([]*College, error) {
	colleges, err := a.store.Colleges(ctx).List(ctx)
	if err != nil {
		return nil, a.infra("list_colleges", err)
	}
	return colleges, nil
}

func (a *Authority) lookup(ctx context.Context, accountID, permissionKey string) (*Permission, error) {
	permissionKey = strings.TrimSpace(permissionKey)
	if accountID == "" || permissionKey == "" {
		return nil, fmt.Errorf("%w: account id and permission key are required", ErrInvalidInput)
	}
	perm, err := a.store.Permissions(ctx).FindByKey(ctx, permissionKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, a.infra("find_permission", err)
	}
	return perm, nil
}

func (a *Authority) infra(op string, err error) error {
	a.log.Error().Str("operation", op).Err(err).Msg("authorization operation failed")
	return fmt.Errorf("auth: %s: internal failure", op)
}
