package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"gradarchive.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Accounts(context.Context) AccountStore { return &accountStore{db: s.db} }
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore {
	return &refreshTokenStore{db: s.db}
}
func (s *PGStore) ResetTokens(context.Context) ResetTokenStore { return &resetTokenStore{db: s.db} }
func (s *PGStore) Permissions(context.Context) PermissionStore {
	return &permissionStore{db: s.db}
}
func (s *PGStore) Colleges(context.Context) CollegeStore { return &collegeStore{db: s.db} }

// ProfileImages returns the store used by the post-delete cleanup task.
func (s *PGStore) ProfileImages() ProfileImageStore { return &profileImageStore{db: s.db} }

// Account store ------------------------------------------------------------
type accountStore struct{ db *sql.DB }

const accountColumns = `id, first_name, last_name, email, verified, password_hash, role, coalesce(profile_image_id, ''), created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Verified,
		&a.PasswordHash, &a.Role, &a.ProfileImageID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *accountStore) Create(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into accounts(id, first_name, last_name, email, verified, password_hash, role)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.FirstName, a.LastName, a.Email, a.Verified, a.PasswordHash, a.Role,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrEmailExists
	}
	return err
}

func (s *accountStore) Find(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id=$1`, id)
	return scanAccount(row)
}

func (s *accountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where email=$1`, email)
	return scanAccount(row)
}

func (s *accountStore) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+accountColumns+` from accounts order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *accountStore) Update(ctx context.Context, id string, upd AccountUpdate) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`update accounts set
			first_name = coalesce($2, first_name),
			last_name = coalesce($3, last_name),
			profile_image_id = coalesce($4, profile_image_id),
			updated_at = now()
		 where id=$1
		 returning `+accountColumns,
		id, upd.FirstName, upd.LastName, upd.ProfileImageID)
	return scanAccount(row)
}

func (s *accountStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set password_hash=$2, updated_at=now() where id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res, ErrAccountNotFound)
}

func (s *accountStore) UpdateRole(ctx context.Context, id, role string) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set role=$2, updated_at=now() where id=$1`, id, role)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrManagerExists
		}
		return err
	}
	return requireRow(res, ErrAccountNotFound)
}

func (s *accountStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from accounts where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrAccountNotFound)
}

func (s *accountStore) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from accounts where role=$1`, role).Scan(&n)
	return n, err
}

// Refresh token store ------------------------------------------------------
type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, tok *RefreshToken) error {
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, token_hash, account_id, expires_at) values($1,$2,$3,$4)`,
		tok.ID, tok.TokenHash, tok.AccountID, tok.ExpiresAt,
	)
	return err
}

func (s *refreshTokenStore) ListByAccount(ctx context.Context, accountID string) ([]*RefreshToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, token_hash, account_id, expires_at, created_at
		 from refresh_tokens where account_id=$1 order by created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*RefreshToken
	for rows.Next() {
		var t RefreshToken
		if err := rows.Scan(&t.ID, &t.TokenHash, &t.AccountID, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

func (s *refreshTokenStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from refresh_tokens where id=$1`, id)
	return err
}

func (s *refreshTokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from refresh_tokens where expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Reset token store --------------------------------------------------------
type resetTokenStore struct{ db *sql.DB }

func (s *resetTokenStore) Create(ctx context.Context, tok *ResetPasswordToken) error {
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into reset_password_tokens(id, token_hash, account_id, expires_at)
		 values($1,$2,nullif($3,''),$4)`,
		tok.ID, tok.TokenHash, tok.AccountID, tok.ExpiresAt,
	)
	return err
}

func (s *resetTokenStore) FindByDigest(ctx context.Context, digest string) (*ResetPasswordToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, token_hash, coalesce(account_id, ''), expires_at, created_at
		 from reset_password_tokens where token_hash=$1`, digest)
	var t ResetPasswordToken
	if err := row.Scan(&t.ID, &t.TokenHash, &t.AccountID, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *resetTokenStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from reset_password_tokens where id=$1`, id)
	return err
}

// Permission store ---------------------------------------------------------
type permissionStore struct{ db *sql.DB }

func (s *permissionStore) Ensure(ctx context.Context, perms []Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx,
			`insert into permissions(id, key, description) values($1,$2,$3)
			 on conflict (key) do nothing`,
			p.ID, p.Key, p.Description,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) List(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, key, description, created_at from permissions order by key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *permissionStore) FindByKey(ctx context.Context, key string) (*Permission, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, key, description, created_at from permissions where key=$1`, key)
	var p Permission
	if err := row.Scan(&p.ID, &p.Key, &p.Description, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *permissionStore) Grant(ctx context.Context, accountID, permissionID string) (*AccountPermission, error) {
	grant := AccountPermission{ID: ids.New(), AccountID: accountID, PermissionID: permissionID}
	row := s.db.QueryRowContext(ctx,
		`insert into account_permissions(id, account_id, permission_id) values($1,$2,$3)
		 on conflict (account_id, permission_id) do update set account_id = excluded.account_id
		 returning id, account_id, permission_id, created_at`,
		grant.ID, accountID, permissionID)
	if err := row.Scan(&grant.ID, &grant.AccountID, &grant.PermissionID, &grant.CreatedAt); err != nil {
		return nil, err
	}
	return &grant, nil
}

func (s *permissionStore) Revoke(ctx context.Context, accountID, permissionID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from account_permissions where account_id=$1 and permission_id=$2`,
		accountID, permissionID)
	return err
}

func (s *permissionStore) GrantsForAccount(ctx context.Context, accountID string) ([]*AccountPermission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, account_id, permission_id, created_at
		 from account_permissions where account_id=$1 order by created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []*AccountPermission
	for rows.Next() {
		var g AccountPermission
		if err := rows.Scan(&g.ID, &g.AccountID, &g.PermissionID, &g.CreatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}

func (s *permissionStore) GrantExists(ctx context.Context, accountID, permissionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from account_permissions where account_id=$1 and permission_id=$2)`,
		accountID, permissionID).Scan(&exists)
	return exists, err
}

func (s *permissionStore) AddScope(ctx context.Context, accountPermissionID, collegeID string) (*PermissionScope, error) {
	scope := PermissionScope{ID: ids.New(), AccountPermissionID: accountPermissionID, CollegeID: collegeID}
	row := s.db.QueryRowContext(ctx,
		`insert into permission_scopes(id, account_permission_id, college_id) values($1,$2,$3)
		 returning id, account_permission_id, college_id, created_at`,
		scope.ID, accountPermissionID, collegeID)
	if err := row.Scan(&scope.ID, &scope.AccountPermissionID, &scope.CollegeID, &scope.CreatedAt); err != nil {
		return nil, err
	}
	return &scope, nil
}

func (s *permissionStore) ScopesForGrant(ctx context.Context, accountPermissionID string) ([]*PermissionScope, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, account_permission_id, college_id, created_at
		 from permission_scopes where account_permission_id=$1 order by created_at`, accountPermissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []*PermissionScope
	for rows.Next() {
		var sc PermissionScope
		if err := rows.Scan(&sc.ID, &sc.AccountPermissionID, &sc.CollegeID, &sc.CreatedAt); err != nil {
			return nil, err
		}
		scopes = append(scopes, &sc)
	}
	return scopes, rows.Err()
}

// College store ------------------------------------------------------------
type collegeStore struct{ db *sql.DB }

func (s *collegeStore) List(ctx context.Context) ([]*College, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, created_at from colleges order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var colleges []*College
	for rows.Next() {
		var c College
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		colleges = append(colleges, &c)
	}
	return colleges, rows.Err()
}

func (s *collegeStore) Find(ctx context.Context, id string) (*College, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, created_at from colleges where id=$1`, id)
	var c College
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Profile image store ------------------------------------------------------
type profileImageStore struct{ db *sql.DB }

func (s *profileImageStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from profile_images where id=$1`, id)
	return err
}

// helpers ------------------------------------------------------------------

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}

// isUniqueViolation matches the postgres unique_violation SQLSTATE. The
// unique indexes on email, (account_id, permission_id) and the single-manager
// partial index are the actual source of truth for those invariants.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
