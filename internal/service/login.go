package service

import (
	"context"
	"errors"

	"gatekeeper/internal/access"
	"gatekeeper/internal/apperr"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/constants"
	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
)

func invalidCredentials() error {
	return apperr.Authentication(msgInvalidCredentials)
}

// Login verifies credentials, applies the lockout policy and opens a new
// session. Unknown email, wrong password and inactive account all produce
// the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta RequestMeta) (res *LoginResult, err error) {
	var userID string
	defer func() {
		s.record(ctx, meta, audit.ActionLogin, userID, audit.EntityUser, userID, nil, nil, err)
	}()

	in.Email = normalizeEmail(in.Email)
	if err := s.limiter.CheckForAuth(ctx, in.Email, meta.IP); err != nil {
		return nil, rateLimitError(err)
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	u, err := s.store.Users().FindByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		s.hasher.VerifyDummy(in.Password)
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	userID = u.ID

	now := s.clock.Now().UTC()

	if s.lockout.LockExpired(u, now) {
		if err := s.store.Users().ResetLoginState(ctx, u.ID, now); err != nil {
			return nil, apperr.Internal(err)
		}
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	}
	if s.lockout.IsLocked(u, now) {
		return nil, apperr.Authentication(msgAccountLocked).WithCode(constants.ErrCodeAccountLocked)
	}
	if !u.IsActive {
		s.hasher.VerifyDummy(in.Password)
		return nil, invalidCredentials()
	}

	if !s.hasher.Verify(in.Password, u.PasswordHash) {
		attempts, err := s.store.Users().RecordFailedLogin(ctx, u.ID, s.lockout.Threshold, s.lockout.LockUntil(now), now)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if attempts >= s.lockout.Threshold {
			s.logger.Warn("account locked after repeated failures", "user_id", u.ID, "attempts", attempts)
		}
		return nil, invalidCredentials()
	}

	if s.cfg.RequireVerifiedEmail && !u.IsVerified {
		return nil, apperr.Authentication(msgEmailNotVerified).WithCode(constants.ErrCodeEmailNotVerified)
	}

	pair, err := s.tokens.GenerateTokenPair(u)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.Users().MarkLoggedIn(ctx, u.ID, now); err != nil {
			return err
		}
		return tx.Sessions().Create(ctx, &models.Session{
			UserID:    u.ID,
			TokenHash: auth.HashToken(pair.RefreshToken),
			IPAddress: meta.IP,
			UserAgent: truncate(meta.UserAgent, constants.MaxUserAgentBytes),
			ExpiresAt: pair.RefreshExpiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now

	return &LoginResult{
		User:       u.Public(),
		Tokens:     pair,
		RedirectTo: access.LandingPath(u.Role),
	}, nil
}
