package auth

import (
	"time"

	"gatekeeper/internal/constants"
	"gatekeeper/internal/models"
)

type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: constants.MaxFailedLoginAttempts,
		Duration:  constants.LockoutDuration,
	}
}

func (p LockoutPolicy) IsLocked(u *models.User, now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// LockExpired reports a lock that is set but no longer in force. The
// counter should be reset before evaluating the attempt.
func (p LockoutPolicy) LockExpired(u *models.User, now time.Time) bool {
	return u.LockedUntil != nil && !now.Before(*u.LockedUntil)
}

func (p LockoutPolicy) LockUntil(now time.Time) time.Time {
	return now.Add(p.Duration)
}
