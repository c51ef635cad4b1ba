package constants

import "time"

const (
	AccessTokenTTL       = 15 * time.Minute
	RefreshTokenTTL      = 7 * 24 * time.Hour
	VerificationTokenTTL = 24 * time.Hour
	PasswordResetTTL     = time.Hour

	MaxFailedLoginAttempts = 5
	LockoutDuration        = 15 * time.Minute

	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes
	MaxPasswordBytes  = 72
	MinNameLength     = 2
	MaxNameLength     = 100
	MaxEmailLength    = 100
	MaxUserAgentBytes = 512

	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)
