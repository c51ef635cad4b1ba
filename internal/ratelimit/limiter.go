// Package ratelimit enforces per-action request budgets for the auth flows.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)

type Action string

const (
	ActionLogin          Action = "login"
	ActionRegister       Action = "register"
	ActionPasswordReset  Action = "password_reset"
	ActionVerification   Action = "verification"
	ActionChangePassword Action = "change_password"
)

type Rule struct {
	Limit  int
	Window time.Duration
}

// Store counts hits for a key within a window.
type Store interface {
	Hit(ctx context.Context, key string, rule Rule) (allowed bool, retryAfter time.Duration, err error)
}

type LimitError struct {
	Action     Action
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s, retry after %s", e.Action, ErrRateLimited, e.RetryAfter)
}

func (e *LimitError) Unwrap() error { return ErrRateLimited }

func DefaultRules() map[Action]Rule {
	return map[Action]Rule{
		ActionLogin:          {Limit: 10, Window: 15 * time.Minute},
		ActionRegister:       {Limit: 5, Window: time.Hour},
		ActionPasswordReset:  {Limit: 5, Window: time.Hour},
		ActionVerification:   {Limit: 5, Window: time.Hour},
		ActionChangePassword: {Limit: 5, Window: 15 * time.Minute},
	}
}

type Limiter struct {
	store  Store
	rules  map[Action]Rule
	logger *slog.Logger
}

// NewLimiter merges rules over DefaultRules.
func NewLimiter(store Store, rules map[Action]Rule, logger *slog.Logger) *Limiter {
	merged := DefaultRules()
	for action, rule := range rules {
		if rule.Limit > 0 && rule.Window > 0 {
			merged[action] = rule
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, rules: merged, logger: logger.With("component", "ratelimit")}
}

// CheckForAuth keys login attempts on the client address and the submitted
// email together.
func (l *Limiter) CheckForAuth(ctx context.Context, email, ip string) error {
	return l.check(ctx, ActionLogin, ip, normalizeEmail(email))
}

func (l *Limiter) CheckForRegister(ctx context.Context, ip string) error {
	return l.check(ctx, ActionRegister, ip)
}

func (l *Limiter) CheckForPasswordReset(ctx context.Context, email, ip string) error {
	return l.check(ctx, ActionPasswordReset, ip, normalizeEmail(email))
}

func (l *Limiter) CheckForVerification(ctx context.Context, email, ip string) error {
	return l.check(ctx, ActionVerification, ip, normalizeEmail(email))
}

// CheckForChangePassword keys on the account, so a stolen access token
// cannot spread guesses across addresses.
func (l *Limiter) CheckForChangePassword(ctx context.Context, userID string) error {
	return l.check(ctx, ActionChangePassword, userID)
}

// check fails open when the backing store errors; the persistent account
// lockout still bounds password guessing.
func (l *Limiter) check(ctx context.Context, action Action, parts ...string) error {
	rule := l.rules[action]
	key := Key(action, parts...)

	allowed, retryAfter, err := l.store.Hit(ctx, key, rule)
	if err != nil {
		l.logger.Warn("rate limit store error, allowing request", "action", action, "error", err)
		return nil
	}
	if !allowed {
		return &LimitError{Action: action, RetryAfter: retryAfter}
	}
	return nil
}

func Key(action Action, parts ...string) string {
	return string(action) + ":" + strings.Join(parts, "|")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
