package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetAccount returns one account by id.
func (s *Service) GetAccount(ctx context.Context, id string) (*Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	account, err := s.store.Accounts(ctx).Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, s.infra("get_account", err)
	}
	return account, nil
}

// ListAccounts returns all accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]*Account, error) {
	accounts, err := s.store.Accounts(ctx).List(ctx)
	if err != nil {
		return nil, s.infra("list_accounts", err)
	}
	return accounts, nil
}

// UpdateAccount applies profile mutations.
func (s *Service) UpdateAccount(ctx context.Context, id string, upd AccountUpdate) (*Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	if upd.FirstName != nil {
		trimmed := strings.TrimSpace(*upd.FirstName)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: first name is required", ErrInvalidInput)
		}
		upd.FirstName = &trimmed
	}
	if upd.LastName != nil {
		trimmed := strings.TrimSpace(*upd.LastName)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: last name is required", ErrInvalidInput)
		}
		upd.LastName = &trimmed
	}
	account, err := s.store.Accounts(ctx).Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, s.infra("update_account", err)
	}
	return account, nil
}

// ChangeRole updates an account's role. Promoting to manager is refused while
// another manager account exists; the partial unique index on the accounts
// table backs the same invariant against a concurrent promotion.
func (s *Service) ChangeRole(ctx context.Context, id, role string) error {
	id = strings.TrimSpace(id)
	role = strings.TrimSpace(strings.ToLower(role))
	if id == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	if !ValidRole(role) {
		return fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, role)
	}
	accounts := s.store.Accounts(ctx)
	if role == RoleManager {
		current, err := accounts.Find(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return s.infra("change_role", err)
		}
		if current.Role != RoleManager {
			n, err := accounts.CountByRole(ctx, RoleManager)
			if err != nil {
				return s.infra("change_role", err)
			}
			if n > 0 {
				return ErrManagerExists
			}
		}
	}
	if err := accounts.UpdateRole(ctx, id, role); err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound):
			return ErrAccountNotFound
		case errors.Is(err, ErrManagerExists):
			return ErrManagerExists
		}
		return s.infra("change_role", err)
	}
	return nil
}

// DeleteAccount removes an account. The database cascades to its refresh
// tokens, permission grants and scopes; reset token rows are orphaned for
// audit. If the account referenced a profile image, the now-unused image row
// is removed by a detached best-effort task: the response returns before the
// cleanup completes, and a cleanup failure is logged but never fails the
// request and is never retried.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	accounts := s.store.Accounts(ctx)
	account, err := accounts.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return s.infra("delete_account", err)
	}
	if err := accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return s.infra("delete_account", err)
	}
	if account.ProfileImageID != "" && s.images != nil {
		s.cleanupProfileImage(account.ProfileImageID)
	}
	return nil
}

// cleanupProfileImage deletes an orphaned profile image row in the
// background, detached from the request context.
func (s *Service) cleanupProfileImage(imageID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.images.Delete(ctx, imageID); err != nil {
			s.log.Warn().
				Str("operation", "cleanup_profile_image").
				Str("profile_image_id", imageID).
				Err(err).
				Msg("best-effort cleanup failed")
		}
	}()
}
