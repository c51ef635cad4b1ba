package api

import (
	"net/http"
	"strings"

	"gatekeeper/internal/access"
)

// GET /dashboard/{role}/...
// Pages are served by the frontend; this answers with the resolved identity
// so the frontend can render the right shell.
func dashboardPage(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		http.Redirect(w, r, access.LoginPath, http.StatusFound)
		return
	}

	section := strings.TrimPrefix(r.URL.Path, access.LandingPath(id.Role))
	writeSuccess(w, http.StatusOK, "Dashboard", map[string]any{
		"userId":  id.UserID,
		"role":    id.Role,
		"landing": access.LandingPath(id.Role),
		"section": strings.Trim(section, "/"),
	})
}

// GET /dashboard. The guard normally redirects before this is reached.
func dashboardRoot(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		http.Redirect(w, r, access.LoginPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, access.LandingPath(id.Role), http.StatusFound)
}
