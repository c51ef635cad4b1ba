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

// RequestEmailVerification reissues a verification link for an active,
// unverified account. Unknown and already verified emails get the same
// response.
func (s *AuthService) RequestEmailVerification(ctx context.Context, email string, meta RequestMeta) (err error) {
	var userID string
	defer func() {
		s.record(ctx, meta, audit.ActionRequestVerification, userID, audit.EntityUser, userID, nil, nil, err)
	}()

	email = normalizeEmail(email)
	if err := s.limiter.CheckForVerification(ctx, email, meta.IP); err != nil {
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
	if !u.IsActive || u.IsVerified {
		return nil
	}
	userID = u.ID

	now := s.clock.Now().UTC()
	var raw string
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		var err error
		raw, err = s.issueSingleUse(ctx, tx, u.ID, models.PurposeEmailVerification, now)
		return err
	})
	if err != nil {
		return apperr.Internal(err)
	}

	s.notifier.SendVerificationEmail(ctx, u.Email, u.Name, raw)
	return nil
}

// ConfirmEmailVerification consumes token and marks its owner verified.
func (s *AuthService) ConfirmEmailVerification(ctx context.Context, token string, meta RequestMeta) (user *models.PublicUser, err error) {
	var userID string
	defer func() {
		s.record(ctx, meta, audit.ActionVerifyEmail, userID, audit.EntityUser, userID, nil, nil, err)
	}()

	if token == "" {
		return nil, apperr.InvalidToken(msgVerificationTokenInvalid)
	}

	now := s.clock.Now().UTC()
	var u *models.User
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		tok, err := tx.Tokens().Consume(ctx, auth.HashToken(token), models.PurposeEmailVerification, now)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.InvalidToken(msgVerificationTokenInvalid)
		}
		if err != nil {
			return err
		}
		userID = tok.UserID

		if err := tx.Users().MarkVerified(ctx, tok.UserID, now); err != nil {
			return err
		}
		u, err = tx.Users().FindByID(ctx, tok.UserID)
		return err
	})
	if err != nil {
		return nil, internal(err)
	}

	return u.Public(), nil
}
