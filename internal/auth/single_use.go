package auth

import (
	"fmt"
	"time"

	"gatekeeper/internal/models"
)

const singleUseTokenBytes = 32

// SingleUseTokenService mints the opaque values used for email verification
// and password reset links.
type SingleUseTokenService struct {
	verificationTTL time.Duration
	resetTTL        time.Duration
}

func NewSingleUseTokenService(verificationTTL, resetTTL time.Duration) *SingleUseTokenService {
	return &SingleUseTokenService{verificationTTL: verificationTTL, resetTTL: resetTTL}
}

// Generate returns the raw value for the link and the hash to persist.
func (s *SingleUseTokenService) Generate() (raw, hash string, err error) {
	raw, err = GenerateOpaqueToken(singleUseTokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("generating single-use token: %w", err)
	}
	return raw, HashToken(raw), nil
}

// ExpiresAt returns when a token of the given purpose minted at now expires.
func (s *SingleUseTokenService) ExpiresAt(purpose models.TokenPurpose, now time.Time) time.Time {
	if purpose == models.PurposePasswordReset {
		return now.Add(s.resetTTL)
	}
	return now.Add(s.verificationTTL)
}
