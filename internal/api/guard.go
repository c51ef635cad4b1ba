package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"gatekeeper/internal/access"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/constants"
	"gatekeeper/internal/models"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID string
	Role   models.Role
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

type AccessTokenParser interface {
	ParseAccessToken(token string) (*auth.Claims, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, e audit.Event)
}

// Guard enforces the route categories from the access package on every
// request.
type Guard struct {
	tokens  AccessTokenParser
	audit   AuditRecorder
	cookies CookieConfig
	logger  *slog.Logger
}

func NewGuard(tokens AccessTokenParser, rec AuditRecorder, cookies CookieConfig, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		tokens:  tokens,
		audit:   rec,
		cookies: cookies,
		logger:  logger.With("component", "guard"),
	}
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// identity headers are only ever set here
		r.Header.Del(HeaderUserID)
		r.Header.Del(HeaderUserRole)

		path := r.URL.Path
		category, required := access.Classify(path)
		if category == access.Public {
			next.ServeHTTP(w, r)
			return
		}

		token := accessTokenFrom(r)
		if token == "" {
			if category == access.Optional {
				next.ServeHTTP(w, r)
				return
			}
			g.unauthenticated(w, r)
			return
		}

		claims, err := g.tokens.ParseAccessToken(token)
		if err != nil {
			if category == access.Optional {
				next.ServeHTTP(w, r)
				return
			}
			g.invalidToken(w, r, err)
			return
		}

		id := Identity{UserID: claims.Subject, Role: claims.Role}

		if access.IsDashboardRoot(path) {
			http.Redirect(w, r, access.LandingPath(id.Role), http.StatusFound)
			return
		}

		if category == access.RoleScoped && id.Role != required {
			g.forbidden(w, r, id, required)
			return
		}

		r.Header.Set(HeaderUserID, id.UserID)
		r.Header.Set(HeaderUserRole, string(id.Role))
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

func loginRedirect(path string, expired bool) string {
	q := url.Values{}
	if expired {
		q.Set("expired", "1")
	}
	q.Set("redirect", path)
	return access.LoginPath + "?" + q.Encode()
}

func (g *Guard) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if !access.IsAPI(r.URL.Path) {
		http.Redirect(w, r, loginRedirect(r.URL.Path, false), http.StatusFound)
		return
	}
	writeError(w, http.StatusUnauthorized, constants.ErrCodeAuthentication, "Authentication required", nil)
}

func (g *Guard) invalidToken(w http.ResponseWriter, r *http.Request, err error) {
	g.cookies.clearAuthCookies(w)

	if !access.IsAPI(r.URL.Path) {
		http.Redirect(w, r, loginRedirect(r.URL.Path, true), http.StatusFound)
		return
	}
	if errors.Is(err, auth.ErrTokenExpired) {
		writeError(w, http.StatusUnauthorized, constants.ErrCodeTokenExpired, "Access token expired", nil)
		return
	}
	writeError(w, http.StatusUnauthorized, constants.ErrCodeInvalidToken, "Invalid access token", nil)
}

func (g *Guard) forbidden(w http.ResponseWriter, r *http.Request, id Identity, required models.Role) {
	g.logger.Warn("role mismatch",
		"user_id", id.UserID,
		"role", id.Role,
		"required_role", required,
		"path", r.URL.Path,
	)
	if g.audit != nil {
		g.audit.Record(r.Context(), audit.Event{
			ActorID:    id.UserID,
			Action:     string(audit.ActionUnauthorizedAccess),
			EntityType: audit.EntityRoute,
			EntityID:   r.URL.Path,
			After: map[string]string{
				"path":         r.URL.Path,
				"role":         string(id.Role),
				"requiredRole": string(required),
			},
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
	}

	if !access.IsAPI(r.URL.Path) {
		http.Redirect(w, r, access.LandingPath(id.Role), http.StatusFound)
		return
	}
	writeError(w, http.StatusForbidden, constants.ErrCodeForbidden, "Insufficient permissions", nil)
}
