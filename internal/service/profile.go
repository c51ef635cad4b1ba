package service

import (
	"context"
	"errors"

	"gatekeeper/internal/apperr"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
)

func (s *AuthService) GetProfile(ctx context.Context, userID string, meta RequestMeta) (user *models.PublicUser, err error) {
	defer func() {
		s.record(ctx, meta, audit.ActionGetUserInfo, userID, audit.EntityUser, userID, nil, nil, err)
	}()

	u, err := s.store.Users().FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return u.Public(), nil
}

type profileSnapshot struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

func snapshotOf(u *models.User) *profileSnapshot {
	return &profileSnapshot{Name: u.Name, Email: u.Email, Phone: u.Phone}
}

// UpdateProfile applies the provided fields. Changing the email clears the
// verified flag and sends a new verification link.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput, meta RequestMeta) (user *models.PublicUser, err error) {
	var before, after *profileSnapshot
	defer func() {
		var b, a any
		if before != nil {
			b = before
		}
		if after != nil {
			a = after
		}
		s.record(ctx, meta, audit.ActionUpdateProfile, userID, audit.EntityUser, userID, b, a, err)
	}()

	if in.Name == nil && in.Email == nil && in.Phone == nil {
		return nil, apperr.Validation(msgValidationFailed, "At least one field must be provided")
	}
	if in.Name != nil {
		name := sanitizeName(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		in.Email = &email
	}
	in.Phone = normalizePhone(in.Phone)

	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	current, err := s.store.Users().FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	before = snapshotOf(current)

	upd := store.ProfileUpdate{Name: in.Name, Phone: in.Phone}
	emailChanged := in.Email != nil && *in.Email != current.Email
	if emailChanged {
		if err := s.ensureEmailAvailable(ctx, *in.Email); err != nil {
			return nil, err
		}
		upd.Email = in.Email
		upd.ClearVerified = true
	}
	if in.Phone != nil && *in.Phone != "" && (current.Phone == nil || *current.Phone != *in.Phone) {
		if err := s.ensurePhoneAvailable(ctx, *in.Phone); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	var (
		updated  *models.User
		rawToken string
	)
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.Users().UpdateProfile(ctx, userID, upd, now); err != nil {
			return err
		}
		if emailChanged {
			raw, err := s.issueSingleUse(ctx, tx, userID, models.PurposeEmailVerification, now)
			if err != nil {
				return err
			}
			rawToken = raw
		}
		var err error
		updated, err = tx.Users().FindByID(ctx, userID)
		return err
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict("Email or phone number already in use")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	after = snapshotOf(updated)
	if emailChanged {
		s.notifier.SendVerificationEmail(ctx, updated.Email, updated.Name, rawToken)
	}
	return updated.Public(), nil
}
