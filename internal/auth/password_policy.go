package auth

import "gatekeeper/internal/constants"

// CheckPasswordStrength returns one message per violated rule, or nil.
func CheckPasswordStrength(password string) []string {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}

	var problems []string
	if len([]rune(password)) < constants.MinPasswordLength {
		problems = append(problems, "Password must be at least 8 characters")
	}
	if len(password) > constants.MaxPasswordBytes {
		problems = append(problems, "Password must be at most 72 bytes")
	}
	if !upper {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !lower {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if !digit {
		problems = append(problems, "Password must contain at least one number")
	}
	if !symbol {
		problems = append(problems, "Password must contain at least one special character")
	}
	return problems
}
