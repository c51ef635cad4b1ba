package api

import (
	"net/http"
	"strings"
	"time"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/constants"
)

type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c CookieConfig) setAuthCookies(w http.ResponseWriter, pair *auth.TokenPair) {
	http.SetCookie(w, c.cookie(constants.AccessTokenCookie, pair.AccessToken, int(c.AccessTTL.Seconds())))
	http.SetCookie(w, c.cookie(constants.RefreshTokenCookie, pair.RefreshToken, int(c.RefreshTTL.Seconds())))
}

func (c CookieConfig) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(constants.AccessTokenCookie, "", -1))
	http.SetCookie(w, c.cookie(constants.RefreshTokenCookie, "", -1))
}

// accessTokenFrom reads the access token cookie, falling back to a bearer
// Authorization header for non-browser clients.
func accessTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(constants.AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(constants.RefreshTokenCookie); err == nil {
		return c.Value
	}
	return ""
}
