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

// Register creates an unverified, active account and sends a verification
// link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (user *models.PublicUser, err error) {
	var userID string
	defer func() {
		var after any
		if user != nil {
			after = map[string]any{"email": user.Email, "role": user.Role}
		}
		s.record(ctx, meta, audit.ActionRegister, userID, audit.EntityUser, userID, nil, after, err)
	}()

	if err := s.limiter.CheckForRegister(ctx, meta.IP); err != nil {
		return nil, rateLimitError(err)
	}

	in.Email = normalizeEmail(in.Email)
	in.Name = sanitizeName(in.Name)
	in.Phone = normalizePhone(in.Phone)
	if in.Phone != nil && *in.Phone == "" {
		in.Phone = nil
	}
	if in.Role == "" {
		in.Role = models.RolePlayer
	}

	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if problems := auth.CheckPasswordStrength(in.Password); len(problems) > 0 {
		return nil, apperr.Validation(msgWeakPassword, problems...)
	}
	if in.Role == models.RoleAdmin && !s.cfg.AllowAdminRegistration {
		return nil, apperr.Validation(msgValidationFailed, "role ADMIN cannot be self-registered")
	}

	if err := s.ensureEmailAvailable(ctx, in.Email); err != nil {
		return nil, err
	}
	if in.Phone != nil {
		if err := s.ensurePhoneAvailable(ctx, *in.Phone); err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.clock.Now().UTC()
	u := &models.User{
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         in.Role,
		IsVerified:   false,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var rawToken string
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.Users().Create(ctx, u); err != nil {
			return err
		}
		raw, err := s.issueSingleUse(ctx, tx, u.ID, models.PurposeEmailVerification, now)
		rawToken = raw
		return err
	})
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict(msgEmailInUse)
		}
		return nil, apperr.Internal(err)
	}

	userID = u.ID
	s.notifier.SendVerificationEmail(ctx, u.Email, u.Name, rawToken)

	return u.Public(), nil
}

func (s *AuthService) ensureEmailAvailable(ctx context.Context, email string) error {
	_, err := s.store.Users().FindByEmail(ctx, email)
	switch {
	case err == nil:
		return apperr.Conflict(msgEmailInUse)
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return apperr.Internal(err)
	}
}

func (s *AuthService) ensurePhoneAvailable(ctx context.Context, phone string) error {
	_, err := s.store.Users().FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return apperr.Conflict(msgPhoneInUse)
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return apperr.Internal(err)
	}
}
