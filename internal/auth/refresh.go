package auth

import (
	"context"
	"time"
)

// issueRefreshToken mints a refresh token, persists its digest and returns
// the raw value. This is the only time the raw token exists outside the
// client.
func (s *Service) issueRefreshToken(ctx context.Context, accountID string) (string, time.Time, error) {
	rawToken, expiresAt, err := s.codec.SignRefresh(accountID)
	if err != nil {
		return "", time.Time{}, s.infra("issue_refresh", err)
	}
	digest, err := s.hasher.HashToken(rawToken)
	if err != nil {
		return "", time.Time{}, s.infra("issue_refresh", err)
	}
	rec := &RefreshToken{
		TokenHash: digest,
		AccountID: accountID,
		ExpiresAt: expiresAt,
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return "", time.Time{}, s.infra("issue_refresh", err)
	}
	return rawToken, expiresAt, nil
}

// findMatchingRefresh walks the account's stored digests and compares each
// against the presented raw token. The scan is O(active sessions): salted
// one-way digests cannot be looked up by raw value, and the expected
// cardinality is the handful of devices a person logs in from. A nil record
// with nil error means no live session matched.
func (s *Service) findMatchingRefresh(ctx context.Context, accountID, rawToken string) (*RefreshToken, error) {
	records, err := s.store.RefreshTokens(ctx).ListByAccount(ctx, accountID)
	if err != nil {
		return nil, s.infra("find_refresh", err)
	}
	for _, rec := range records {
		if s.hasher.MatchToken(rec.TokenHash, rawToken) {
			return rec, nil
		}
	}
	return nil, nil
}

// PurgeExpiredRefreshTokens removes refresh token records whose server-side
// expiry has passed. Intended for periodic maintenance.
func (s *Service) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	n, err := s.store.RefreshTokens(ctx).DeleteExpired(ctx)
	if err != nil {
		return 0, s.infra("purge_refresh", err)
	}
	return n, nil
}
