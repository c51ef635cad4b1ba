package service

import (
	"context"
	"errors"

	"gatekeeper/internal/apperr"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/store"
)

// Refresh rotates the session that holds refreshToken. The old token stops
// working as soon as the rotation commits.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (res *RefreshResult, err error) {
	var userID string
	defer func() {
		s.record(ctx, meta, audit.ActionRefreshToken, userID, audit.EntitySession, userID, nil, nil, err)
	}()

	if refreshToken == "" {
		return nil, apperr.InvalidToken(msgRefreshRequired)
	}

	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.TokenExpired(msgRefreshInvalid)
	}
	userID = claims.Subject

	u, err := s.store.Users().FindByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.TokenExpired(msgRefreshInvalid)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !u.IsActive {
		return nil, apperr.TokenExpired(msgRefreshInvalid)
	}

	pair, err := s.tokens.GenerateTokenPair(u)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.clock.Now().UTC()
	err = s.store.Sessions().Rotate(ctx, u.ID, auth.HashToken(refreshToken), auth.HashToken(pair.RefreshToken), pair.RefreshExpiresAt, now)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.TokenExpired(msgRefreshInvalid)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &RefreshResult{User: u.Public(), Tokens: pair}, nil
}

// Logout revokes every unexpired session of the caller. It always succeeds
// from the caller's point of view; an unidentifiable caller is a no-op.
func (s *AuthService) Logout(ctx context.Context, in LogoutInput, meta RequestMeta) *LogoutResult {
	res := &LogoutResult{}
	var opErr error
	defer func() {
		s.record(ctx, meta, audit.ActionLogout, res.UserID, audit.EntitySession, res.UserID,
			nil, map[string]int64{"sessionsRevoked": res.SessionsRevoked}, opErr)
	}()

	res.UserID = s.subjectOf(in)
	if res.UserID == "" {
		return res
	}

	n, err := s.store.Sessions().DeleteActiveForUser(ctx, res.UserID, s.clock.Now().UTC())
	if err != nil {
		opErr = err
		s.logger.Error("failed to revoke sessions on logout", "user_id", res.UserID, "error", err)
		return res
	}
	res.SessionsRevoked = n
	return res
}

// subjectOf resolves the caller from the access token, falling back to the
// refresh token when the access token has already expired.
func (s *AuthService) subjectOf(in LogoutInput) string {
	if claims, err := s.tokens.ParseAccessToken(in.AccessToken); err == nil {
		return claims.Subject
	}
	if claims, err := s.tokens.ParseRefreshToken(in.RefreshToken); err == nil {
		return claims.Subject
	}
	return ""
}
