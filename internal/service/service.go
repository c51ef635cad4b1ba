// Package service implements the authentication workflows on top of the
// store, token, hashing, rate limiting and audit components.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"gatekeeper/internal/apperr"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/constants"
	"gatekeeper/internal/models"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/store"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
	VerifyDummy(plain string)
}

type TokenIssuer interface {
	GenerateTokenPair(user *models.User) (*auth.TokenPair, error)
	ParseAccessToken(token string) (*auth.Claims, error)
	ParseRefreshToken(token string) (*auth.Claims, error)
}

type RateLimiter interface {
	CheckForAuth(ctx context.Context, email, ip string) error
	CheckForRegister(ctx context.Context, ip string) error
	CheckForPasswordReset(ctx context.Context, email, ip string) error
	CheckForVerification(ctx context.Context, email, ip string) error
	CheckForChangePassword(ctx context.Context, userID string) error
}

type AuditRecorder interface {
	Record(ctx context.Context, e audit.Event)
}

// Notifier delivers account emails. Delivery is best effort and never fails
// the calling operation.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, name, token string)
	SendPasswordResetEmail(ctx context.Context, to, name, token string)
}

type Config struct {
	RequireVerifiedEmail   bool
	AllowAdminRegistration bool
}

type Deps struct {
	Store     store.Store
	Hasher    PasswordHasher
	Tokens    TokenIssuer
	SingleUse *auth.SingleUseTokenService
	Lockout   auth.LockoutPolicy
	Limiter   RateLimiter
	Audit     AuditRecorder
	Notifier  Notifier
	Clock     Clock
	Logger    *slog.Logger
}

// RequestMeta is the client context recorded with audit entries and
// sessions.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type AuthService struct {
	auditor
	store     store.Store
	hasher    PasswordHasher
	tokens    TokenIssuer
	singleUse *auth.SingleUseTokenService
	lockout   auth.LockoutPolicy
	limiter   RateLimiter
	notifier  Notifier
	clock     Clock
	logger    *slog.Logger
	cfg       Config
	validate  *inputValidator
}

func NewAuthService(d Deps, cfg Config) *AuthService {
	if d.Clock == nil {
		d.Clock = realClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Lockout.Threshold <= 0 {
		d.Lockout = auth.DefaultLockoutPolicy()
	}
	return &AuthService{
		auditor:   auditor{rec: d.Audit},
		store:     d.Store,
		hasher:    d.Hasher,
		tokens:    d.Tokens,
		singleUse: d.SingleUse,
		lockout:   d.Lockout,
		limiter:   d.Limiter,
		notifier:  d.Notifier,
		clock:     d.Clock,
		logger:    d.Logger.With("component", "auth"),
		cfg:       cfg,
		validate:  newInputValidator(),
	}
}

type auditor struct {
	rec AuditRecorder
}

// record writes the outcome of action. A non-nil err turns the entry into
// <ACTION>_FAILED with the error message as the after payload.
func (a auditor) record(ctx context.Context, meta RequestMeta, action audit.Action, actorID, entityType, entityID string, before, after any, err error) {
	if a.rec == nil {
		return
	}
	e := audit.Event{
		ActorID:    actorID,
		Action:     action.Success(),
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
		IP:         meta.IP,
		UserAgent:  truncate(meta.UserAgent, constants.MaxUserAgentBytes),
	}
	if err != nil {
		e.Action = action.Failed()
		e.After = audit.FailurePayload(err)
	}
	a.rec.Record(ctx, e)
}

// issueSingleUse invalidates outstanding tokens of purpose for the user and
// stores a fresh one. It returns the raw value for the email link.
func (s *AuthService) issueSingleUse(ctx context.Context, tx store.Store, userID string, purpose models.TokenPurpose, now time.Time) (string, error) {
	if _, err := tx.Tokens().InvalidateForUser(ctx, userID, purpose); err != nil {
		return "", err
	}

	raw, hash, err := s.singleUse.Generate()
	if err != nil {
		return "", err
	}

	err = tx.Tokens().Create(ctx, &models.SingleUseToken{
		UserID:    userID,
		TokenHash: hash,
		Purpose:   purpose,
		ExpiresAt: s.singleUse.ExpiresAt(purpose, now),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

func rateLimitError(err error) error {
	var limitErr *ratelimit.LimitError
	if errors.As(err, &limitErr) {
		return apperr.RateLimited(msgRateLimited, limitErr.RetryAfter)
	}
	return apperr.Internal(err)
}

// internal passes through service errors and wraps anything else.
func internal(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.Internal(err)
}

// truncate drops invalid UTF-8 from s and cuts it to at most n bytes on a
// rune boundary.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
