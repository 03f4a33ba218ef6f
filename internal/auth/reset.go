package auth

import (
	"context"
	"time"
)

// issueResetToken mints a reset token and persists its deterministic digest.
// Reset tokens are single-use and short-lived, so a direct digest lookup on
// consume is sufficient; the per-record comparison loop used for refresh
// tokens is not needed here.
func (s *Service) issueResetToken(ctx context.Context, accountID string) (string, time.Time, error) {
	rawToken, expiresAt, err := s.codec.SignReset(accountID)
	if err != nil {
		return "", time.Time{}, s.infra("issue_reset", err)
	}
	rec := &ResetPasswordToken{
		TokenHash: TokenDigest(rawToken),
		AccountID: accountID,
		ExpiresAt: expiresAt,
	}
	if err := s.store.ResetTokens(ctx).Create(ctx, rec); err != nil {
		return "", time.Time{}, s.infra("issue_reset", err)
	}
	return rawToken, expiresAt, nil
}
