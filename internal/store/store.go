// Package store defines the persistence contracts used by the auth service.
// Implementations live in internal/db.
package store

import (
	"context"
	"errors"
	"time"

	"gatekeeper/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// ProfileUpdate carries the optional profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name  *string
	Email *string
	Phone *string
	// ClearVerified resets is_verified, used when the email changes.
	ClearVerified bool
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	// RecordFailedLogin increments the failure counter and sets locked_until
	// in the same statement once the counter reaches threshold.
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (int, error)
	ResetLoginState(ctx context.Context, id string, now time.Time) error
	MarkLoggedIn(ctx context.Context, id string, now time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error
	MarkVerified(ctx context.Context, id string, now time.Time) error
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate, now time.Time) error
	SetActive(ctx context.Context, id string, active bool, now time.Time) error
}

type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	// Rotate swaps oldHash for newHash only while the matching session is
	// unexpired. It returns ErrNotFound when no row matched.
	Rotate(ctx context.Context, userID, oldHash, newHash string, expiresAt, now time.Time) error
	DeleteActiveForUser(ctx context.Context, userID string, now time.Time) (int64, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	CountActiveForUser(ctx context.Context, userID string, now time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type TokenStore interface {
	Create(ctx context.Context, t *models.SingleUseToken) error
	// InvalidateForUser removes unconsumed tokens of the purpose.
	InvalidateForUser(ctx context.Context, userID string, purpose models.TokenPurpose) (int64, error)
	// FindActive returns an unused, unexpired token without consuming it.
	FindActive(ctx context.Context, tokenHash string, purpose models.TokenPurpose, now time.Time) (*models.SingleUseToken, error)
	// Consume marks a valid token used and returns it. It returns ErrNotFound
	// for unknown, used or expired tokens.
	Consume(ctx context.Context, tokenHash string, purpose models.TokenPurpose, now time.Time) (*models.SingleUseToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type AuditFilter struct {
	ActorUserID string
	Action      string
	EntityType  string
	EntityID    string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// Normalize clamps Limit to 1..200 with a default of 50.
func (f AuditFilter) Normalize() AuditFilter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// AuditStore is append-only.
type AuditStore interface {
	Append(ctx context.Context, e *models.AuditLogEntry) error
	List(ctx context.Context, f AuditFilter) ([]*models.AuditLogEntry, error)
}

// Store groups the repositories that participate in transactions.
type Store interface {
	Users() UserStore
	Sessions() SessionStore
	Tokens() TokenStore
	// WithinTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
