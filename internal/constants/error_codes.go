package constants

const (
	// Envelope error codes returned to clients
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeAuthentication  = "AUTHENTICATION_ERROR"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeInvalidToken    = "INVALID_TOKEN"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"

	// Login refinements that keep the Authentication category
	ErrCodeAccountLocked    = "ACCOUNT_LOCKED"
	ErrCodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
)
