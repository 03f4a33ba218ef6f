package auth

import (
	"context"
	"fmt"
	"time"
)

// memStore is an in-memory Store used by the orchestrator tests. It mirrors
// the error contract of the Postgres implementation.
type memStore struct {
	seq      int
	accounts map[string]*Account
	refresh  map[string]*RefreshToken
	resets   map[string]*ResetPasswordToken
	perms    map[string]*Permission
	grants   map[string]*AccountPermission
	scopes   map[string]*PermissionScope
	colleges map[string]*College
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*Account),
		refresh:  make(map[string]*RefreshToken),
		resets:   make(map[string]*ResetPasswordToken),
		perms:    make(map[string]*Permission),
		grants:   make(map[string]*AccountPermission),
		scopes:   make(map[string]*PermissionScope),
		colleges: make(map[string]*College),
	}
}

func (m *memStore) nextID() string {
	m.seq++
	return fmt.Sprintf("id-%04d", m.seq)
}

func (m *memStore) Accounts(context.Context) AccountStore           { return (*memAccounts)(m) }
func (m *memStore) RefreshTokens(context.Context) RefreshTokenStore { return (*memRefresh)(m) }
func (m *memStore) ResetTokens(context.Context) ResetTokenStore     { return (*memResets)(m) }
func (m *memStore) Permissions(context.Context) PermissionStore     { return (*memPerms)(m) }
func (m *memStore) Colleges(context.Context) CollegeStore           { return (*memColleges)(m) }

type memAccounts memStore

func (m *memAccounts) Create(_ context.Context, a *Account) error {
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return ErrEmailExists
		}
	}
	if a.ID == "" {
		a.ID = (*memStore)(m).nextID()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *memAccounts) Find(_ context.Context, id string) (*Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	for _, a := range m.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *memAccounts) List(_ context.Context) ([]*Account, error) {
	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memAccounts) Update(_ context.Context, id string, upd AccountUpdate) (*Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if upd.FirstName != nil {
		a.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		a.LastName = *upd.LastName
	}
	if upd.ProfileImageID != nil {
		a.ProfileImageID = *upd.ProfileImageID
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memAccounts) UpdatePassword(_ context.Context, id, passwordHash string) error {
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (m *memAccounts) UpdateRole(_ context.Context, id, role string) error {
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.Role = role
	return nil
}

func (m *memAccounts) Delete(_ context.Context, id string) error {
	if _, ok := m.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, id)
	for rid, rec := range m.refresh {
		if rec.AccountID == id {
			delete(m.refresh, rid)
		}
	}
	for _, rec := range m.resets {
		if rec.AccountID == id {
			rec.AccountID = ""
		}
	}
	return nil
}

func (m *memAccounts) CountByRole(_ context.Context, role string) (int, error) {
	n := 0
	for _, a := range m.accounts {
		if a.Role == role {
			n++
		}
	}
	return n, nil
}

type memRefresh memStore

func (m *memRefresh) Create(_ context.Context, tok *RefreshToken) error {
	if tok.ID == "" {
		tok.ID = (*memStore)(m).nextID()
	}
	tok.CreatedAt = time.Now()
	cp := *tok
	m.refresh[tok.ID] = &cp
	return nil
}

func (m *memRefresh) ListByAccount(_ context.Context, accountID string) ([]*RefreshToken, error) {
	var out []*RefreshToken
	for _, rec := range m.refresh {
		if rec.AccountID == accountID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRefresh) Delete(_ context.Context, id string) error {
	delete(m.refresh, id)
	return nil
}

func (m *memRefresh) DeleteExpired(_ context.Context) (int64, error) {
	var n int64
	now := time.Now()
	for id, rec := range m.refresh {
		if now.After(rec.ExpiresAt) {
			delete(m.refresh, id)
			n++
		}
	}
	return n, nil
}

type memResets memStore

func (m *memResets) Create(_ context.Context, tok *ResetPasswordToken) error {
	if tok.ID == "" {
		tok.ID = (*memStore)(m).nextID()
	}
	tok.CreatedAt = time.Now()
	cp := *tok
	m.resets[tok.ID] = &cp
	return nil
}

func (m *memResets) FindByDigest(_ context.Context, digest string) (*ResetPasswordToken, error) {
	for _, rec := range m.resets {
		if rec.TokenHash == digest {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memResets) Delete(_ context.Context, id string) error {
	delete(m.resets, id)
	return nil
}

type memPerms memStore

func (m *memPerms) Ensure(_ context.Context, perms []Permission) error {
	for _, p := range perms {
		if _, err := m.FindByKey(context.Background(), p.Key); err == nil {
			continue
		}
		cp := p
		cp.ID = (*memStore)(m).nextID()
		m.perms[cp.ID] = &cp
	}
	return nil
}

func (m *memPerms) List(_ context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memPerms) FindByKey(_ context.Context, key string) (*Permission, error) {
	for _, p := range m.perms {
		if p.Key == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memPerms) Grant(_ context.Context, accountID, permissionID string) (*AccountPermission, error) {
	for _, g := range m.grants {
		if g.AccountID == accountID && g.PermissionID == permissionID {
			cp := *g
			return &cp, nil
		}
	}
	g := &AccountPermission{
		ID:           (*memStore)(m).nextID(),
		AccountID:    accountID,
		PermissionID: permissionID,
		CreatedAt:    time.Now(),
	}
	m.grants[g.ID] = g
	cp := *g
	return &cp, nil
}

func (m *memPerms) Revoke(_ context.Context, accountID, permissionID string) error {
	for id, g := range m.grants {
		if g.AccountID == accountID && g.PermissionID == permissionID {
			delete(m.grants, id)
			for sid, s := range m.scopes {
				if s.AccountPermissionID == id {
					delete(m.scopes, sid)
				}
			}
		}
	}
	return nil
}

func (m *memPerms) GrantsForAccount(_ context.Context, accountID string) ([]*AccountPermission, error) {
	var out []*AccountPermission
	for _, g := range m.grants {
		if g.AccountID == accountID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPerms) GrantExists(_ context.Context, accountID, permissionID string) (bool, error) {
	for _, g := range m.grants {
		if g.AccountID == accountID && g.PermissionID == permissionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPerms) AddScope(_ context.Context, accountPermissionID, collegeID string) (*PermissionScope, error) {
	for _, s := range m.scopes {
		if s.AccountPermissionID == accountPermissionID && s.CollegeID == collegeID {
			cp := *s
			return &cp, nil
		}
	}
	s := &PermissionScope{
		ID:                  (*memStore)(m).nextID(),
		AccountPermissionID: accountPermissionID,
		CollegeID:           collegeID,
		CreatedAt:           time.Now(),
	}
	m.scopes[s.ID] = s
	cp := *s
	return &cp, nil
}

func (m *memPerms) ScopesForGrant(_ context.Context, accountPermissionID string) ([]*PermissionScope, error) {
	var out []*PermissionScope
	for _, s := range m.scopes {
		if s.AccountPermissionID == accountPermissionID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memColleges memStore

func (m *memColleges) List(_ context.Context) ([]*College, error) {
	out := make([]*College, 0, len(m.colleges))
	for _, c := range m.colleges {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memColleges) Find(_ context.Context, id string) (*College, error) {
	c, ok := m.colleges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}
