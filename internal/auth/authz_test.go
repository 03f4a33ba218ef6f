package auth

import (
	"context"
	"errors"
	"testing"
)

func newTestAuthority(t *testing.T, store *memStore) *Authority {
	t.Helper()
	if err := store.Permissions(context.Background()).Ensure(context.Background(), BuiltinPermissions); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	authority, err := NewAuthority(store)
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	return authority
}

func TestHasPermissionRequiresGrant(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	authority := newTestAuthority(t, store)
	ctx := context.Background()
	account := registerAccount(t, svc, "ada@example.edu")

	ok, err := authority.HasPermission(ctx, account.ID, PermProjects)
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if ok {
		t.Fatal("ungranted permission allowed")
	}

	if _, err := authority.Grant(ctx, account.ID, PermProjects); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	ok, err = authority.HasPermission(ctx, account.ID, PermProjects)
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if !ok {
		t.Fatal("granted permission denied")
	}

	if err := authority.Revoke(ctx, account.ID, PermProjects); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	ok, err = authority.HasPermission(ctx, account.ID, PermProjects)
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if ok {
		t.Fatal("revoked permission still allowed")
	}
}

func TestManagerBypassesGrants(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	authority := newTestAuthority(t, store)
	ctx := context.Background()
	account := registerAccount(t, svc, "boss@example.edu")

	if err := svc.ChangeRole(ctx, account.ID, RoleManager); err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	for _, perm := range BuiltinPermissions {
		ok, err := authority.HasPermission(ctx, account.ID, perm.Key)
		if err != nil {
			t.Fatalf("HasPermission(%s): %v", perm.Key, err)
		}
		if !ok {
			t.Fatalf("manager denied %s", perm.Key)
		}
	}
}

// A permission key outside the catalog is a plain denial, not an error.
func TestHasPermissionUnknownKey(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	authority := newTestAuthority(t, store)
	account := registerAccount(t, svc, "ada@example.edu")

	ok, err := authority.HasPermission(context.Background(), account.ID, "no-such-permission")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if ok {
		t.Fatal("unknown permission allowed")
	}
}

func TestGrantIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	authority := newTestAuthority(t, store)
	ctx := context.Background()
	account := registerAccount(t, svc, "ada@example.edu")

	first, err := authority.Grant(ctx, account.ID, PermPeople)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	second, err := authority.Grant(ctx, account.ID, PermPeople)
	if err != nil {
		t.Fatalf("second Grant: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("duplicate grant created a second row")
	}
	grants, err := authority.ListGrants(ctx, account.ID)
	if err != nil {
		t.Fatalf("ListGrants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("got %d grants, want 1", len(grants))
	}
}

func TestAddScopeValidatesCollege(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	authority := newTestAuthority(t, store)
	ctx := context.Background()
	account := registerAccount(t, svc, "ada@example.edu")

	grant, err := authority.Grant(ctx, account.ID, PermProjects)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if _, err := authority.AddScope(ctx, grant.ID, "missing-college"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	store.colleges["c1"] = &College{ID: "c1", Name: "College of Engineering"}
	scope, err := authority.AddScope(ctx, grant.ID, "c1")
	if err != nil {
		t.Fatalf("AddScope: %v", err)
	}
	scopes, err := authority.ListScopes(ctx, grant.ID)
	if err != nil {
		t.Fatalf("ListScopes: %v", err)
	}
	if len(scopes) != 1 || scopes[0].ID != scope.ID {
		t.Fatalf("unexpected scopes: %+v", scopes)
	}
}

// Scopes narrow nothing today: a scoped grant still passes a flat permission
// check for any college.
func TestScopesDoNotAffectChecks(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)
	authority := newTestAuthority(t, store)
	ctx := context.Background()
	account := registerAccount(t, svc, "ada@example.edu")

	grant, err := authority.Grant(ctx, account.ID, PermProjects)
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	store.colleges["c1"] = &College{ID: "c1", Name: "College of Science"}
	if _, err := authority.AddScope(ctx, grant.ID, "c1"); err != nil {
		t.Fatalf("AddScope: %v", err)
	}

	ok, err := authority.HasPermission(ctx, account.ID, PermProjects)
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if !ok {
		t.Fatal("scoped grant failed a flat permission check")
	}
}
