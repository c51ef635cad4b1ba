package service

const (
	msgInvalidCredentials       = "Invalid email or password"
	msgAccountLocked            = "Account is temporarily locked. Please try again later."
	msgEmailNotVerified         = "Please verify your email address first"
	msgRefreshRequired          = "Refresh token required"
	msgRefreshInvalid           = "Refresh token expired or invalid"
	msgResetTokenInvalid        = "Invalid or expired reset token"
	msgVerificationTokenInvalid = "Invalid or expired verification token"
	msgRateLimited              = "Too many requests. Please try again later."
	msgUserNotFound             = "User not found"
	msgEmailInUse               = "Email already registered"
	msgPhoneInUse               = "Phone number already registered"
	msgValidationFailed         = "Validation failed"
	msgWeakPassword             = "Password does not meet requirements"
	msgCurrentPasswordWrong     = "Current password is incorrect"
)
