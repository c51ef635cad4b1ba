package service

import (
	"context"
	"errors"

	"gatekeeper/internal/apperr"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
)

// ForgotPassword sends a reset link when the email belongs to an active
// account. The caller cannot tell whether it did.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) (err error) {
	var userID string
	defer func() {
		s.record(ctx, meta, audit.ActionForgotPassword, userID, audit.EntityUser, userID, nil, nil, err)
	}()

	email = normalizeEmail(email)
	if err := s.limiter.CheckForPasswordReset(ctx, email, meta.IP); err != nil {
		return rateLimitError(err)
	}
	if err := s.validate.Struct(emailInput{Email: email}); err != nil {
		return err
	}

	u, err := s.store.Users().FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if !u.IsActive {
		return nil
	}
	userID = u.ID

	now := s.clock.Now().UTC()
	var raw string
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		var err error
		raw, err = s.issueSingleUse(ctx, tx, u.ID, models.PurposePasswordReset, now)
		return err
	})
	if err != nil {
		return apperr.Internal(err)
	}

	s.notifier.SendPasswordResetEmail(ctx, u.Email, u.Name, raw)
	return nil
}

// ResetPassword consumes a reset token, replaces the password hash, clears
// lockout state and revokes every session of the user in one transaction.
// The token is looked up before hashing so unknown tokens stay cheap.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput, meta RequestMeta) (err error) {
	var userID string
	defer func() {
		s.record(ctx, meta, audit.ActionResetPassword, userID, audit.EntityUser, userID, nil, nil, err)
	}()

	if err := s.validate.Struct(in); err != nil {
		return err
	}
	if problems := auth.CheckPasswordStrength(in.Password); len(problems) > 0 {
		return apperr.Validation(msgWeakPassword, problems...)
	}

	tokenHash := auth.HashToken(in.Token)
	now := s.clock.Now().UTC()
	found, err := s.store.Tokens().FindActive(ctx, tokenHash, models.PurposePasswordReset, now)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Validation(msgResetTokenInvalid)
	}
	if err != nil {
		return apperr.Internal(err)
	}
	userID = found.UserID

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return apperr.Internal(err)
	}

	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		tok, err := tx.Tokens().Consume(ctx, tokenHash, models.PurposePasswordReset, now)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Validation(msgResetTokenInvalid)
		}
		if err != nil {
			return err
		}
		userID = tok.UserID

		if err := tx.Users().UpdatePassword(ctx, tok.UserID, hash, now); err != nil {
			return err
		}
		_, err = tx.Sessions().DeleteAllForUser(ctx, tok.UserID)
		return err
	})
	if err != nil {
		return internal(err)
	}
	return nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one. All sessions are revoked, including the
// caller's.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput, meta RequestMeta) (err error) {
	defer func() {
		s.record(ctx, meta, audit.ActionChangePassword, userID, audit.EntityUser, userID, nil, nil, err)
	}()

	if err := s.validate.Struct(in); err != nil {
		return err
	}
	if problems := auth.CheckPasswordStrength(in.NewPassword); len(problems) > 0 {
		return apperr.Validation(msgWeakPassword, problems...)
	}
	if in.NewPassword == in.CurrentPassword {
		return apperr.Validation(msgValidationFailed, "New password must be different from current password")
	}
	if err := s.limiter.CheckForChangePassword(ctx, userID); err != nil {
		return rateLimitError(err)
	}

	u, err := s.store.Users().FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if !s.hasher.Verify(in.CurrentPassword, u.PasswordHash) {
		return apperr.Authentication(msgCurrentPasswordWrong)
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return apperr.Internal(err)
	}

	now := s.clock.Now().UTC()
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.Users().UpdatePassword(ctx, u.ID, hash, now); err != nil {
			return err
		}
		_, err := tx.Sessions().DeleteAllForUser(ctx, u.ID)
		return err
	})
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}
