package service

import (
	"context"
	"errors"

	"gatekeeper/internal/apperr"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
)

// AdminService holds operations reserved for the ADMIN role. Role checks are
// done by the access guard before these are reached.
type AdminService struct {
	auditor
	store  store.Store
	audits store.AuditStore
	clock  Clock
}

func NewAdminService(st store.Store, audits store.AuditStore, rec AuditRecorder, clock Clock) *AdminService {
	if clock == nil {
		clock = realClock{}
	}
	return &AdminService{auditor: auditor{rec: rec}, store: st, audits: audits, clock: clock}
}

func (s *AdminService) ListAuditLogs(ctx context.Context, actorID string, f store.AuditFilter, meta RequestMeta) (entries []*models.AuditLogEntry, err error) {
	defer func() {
		s.record(ctx, meta, audit.ActionListAuditLogs, actorID, audit.EntityAudit, "", nil, nil, err)
	}()

	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, apperr.Validation(msgValidationFailed, "to must not be before from")
	}

	entries, err = s.audits.List(ctx, f.Normalize())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return entries, nil
}

type activeSnapshot struct {
	IsActive bool `json:"isActive"`
}

// DeactivateUser soft-deletes an account and revokes its sessions.
func (s *AdminService) DeactivateUser(ctx context.Context, actorID, targetID string, meta RequestMeta) (*models.PublicUser, error) {
	if actorID == targetID {
		err := apperr.Validation(msgValidationFailed, "You cannot deactivate your own account")
		s.record(ctx, meta, audit.ActionDeactivateUser, actorID, audit.EntityUser, targetID, nil, nil, err)
		return nil, err
	}
	return s.setActive(ctx, audit.ActionDeactivateUser, actorID, targetID, false, meta)
}

func (s *AdminService) ActivateUser(ctx context.Context, actorID, targetID string, meta RequestMeta) (*models.PublicUser, error) {
	return s.setActive(ctx, audit.ActionActivateUser, actorID, targetID, true, meta)
}

func (s *AdminService) setActive(ctx context.Context, action audit.Action, actorID, targetID string, active bool, meta RequestMeta) (user *models.PublicUser, err error) {
	var before, after any
	defer func() {
		s.record(ctx, meta, action, actorID, audit.EntityUser, targetID, before, after, err)
	}()

	u, err := s.store.Users().FindByID(ctx, targetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	before = activeSnapshot{IsActive: u.IsActive}

	now := s.clock.Now().UTC()
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		if err := tx.Users().SetActive(ctx, u.ID, active, now); err != nil {
			return err
		}
		if active {
			return nil
		}
		_, err := tx.Sessions().DeleteAllForUser(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	u.IsActive = active
	after = activeSnapshot{IsActive: active}
	return u.Public(), nil
}
