// Package access holds the route taxonomy and the role to landing path table
// shared by the access guard and the login response.
package access

import (
	"strings"

	"gatekeeper/internal/models"
)

type Category int

const (
	// Authenticated is the zero value so unknown routes require a session.
	Authenticated Category = iota
	Public
	// Optional routes resolve identity when present but never reject.
	Optional
	RoleScoped
)

func (c Category) String() string {
	switch c {
	case Public:
		return "public"
	case Optional:
		return "optional"
	case RoleScoped:
		return "role_scoped"
	default:
		return "authenticated"
	}
}

const (
	DashboardPath = "/dashboard"
	LoginPath     = "/login"
	APIPrefix     = "/api/"
)

var landingPaths = map[models.Role]string{
	models.RolePlayer:   "/dashboard/player",
	models.RoleOwner:    "/dashboard/owner",
	models.RoleEmployee: "/dashboard/employee",
	models.RoleAdmin:    "/dashboard/admin",
}

// LandingPath is the page a role lands on after login.
func LandingPath(role models.Role) string {
	if p, ok := landingPaths[role]; ok {
		return p
	}
	return "/"
}

var publicExact = map[string]bool{
	"/":                            true,
	LoginPath:                      true,
	"/register":                    true,
	"/forgot-password":             true,
	"/reset-password":              true,
	"/verify-email":                true,
	"/health":                      true,
	"/api/v1/server/info":          true,
	"/api/v1/auth/register":        true,
	"/api/v1/auth/login":           true,
	"/api/v1/auth/forgot-password": true,
	"/api/v1/auth/reset-password":  true,
	"/api/v1/auth/verify":          true,
	"/favicon.ico":                 true,
}

var publicPrefixes = []string{
	"/api/v1/auth/verify/",
	"/static/",
}

var optionalExact = map[string]bool{
	"/api/v1/auth/refresh": true,
	"/api/v1/auth/logout":  true,
}

// roleScoped maps a path prefix to the single role allowed under it.
var roleScoped = []struct {
	prefix string
	role   models.Role
}{
	{"/dashboard/player", models.RolePlayer},
	{"/dashboard/owner", models.RoleOwner},
	{"/dashboard/employee", models.RoleEmployee},
	{"/dashboard/admin", models.RoleAdmin},
	{"/api/v1/admin", models.RoleAdmin},
}

// Classify returns the category of path and, for role-scoped paths, the role
// required.
func Classify(path string) (Category, models.Role) {
	path = normalize(path)

	if publicExact[path] {
		return Public, ""
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return Public, ""
		}
	}
	if optionalExact[path] {
		return Optional, ""
	}
	for _, rs := range roleScoped {
		if hasPathPrefix(path, rs.prefix) {
			return RoleScoped, rs.role
		}
	}
	return Authenticated, ""
}

// Allowed reports whether role may access path.
func Allowed(role models.Role, path string) bool {
	cat, required := Classify(path)
	if cat != RoleScoped {
		return true
	}
	return role == required
}

func IsAPI(path string) bool {
	return strings.HasPrefix(path, APIPrefix)
}

func IsDashboardRoot(path string) bool {
	return normalize(path) == DashboardPath
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

// hasPathPrefix matches whole segments so /dashboard/adminx is not under
// /dashboard/admin.
func hasPathPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
