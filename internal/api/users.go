package api

import (
	"log/slog"
	"net/http"

	"gatekeeper/internal/apperr"
	"gatekeeper/internal/service"
)

type UserHandler struct {
	svc     *service.AuthService
	cookies CookieConfig
	logger  *slog.Logger
}

func NewUserHandler(svc *service.AuthService, cookies CookieConfig, logger *slog.Logger) *UserHandler {
	return &UserHandler{svc: svc, cookies: cookies, logger: logger}
}

func currentUser(r *http.Request) (Identity, error) {
	id, ok := IdentityFrom(r.Context())
	if !ok || id.UserID == "" {
		return Identity{}, apperr.Authentication("Authentication required")
	}
	return id, nil
}

// GET /api/v1/auth/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, err := currentUser(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	user, err := h.svc.GetProfile(r.Context(), id.UserID, metaFor(r))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User retrieved", map[string]any{"user": user})
}

// PUT|PATCH /api/v1/auth/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, err := currentUser(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var req service.UpdateProfileInput
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), id.UserID, req, metaFor(r))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Profile updated", map[string]any{"user": user})
}

// POST /api/v1/auth/change-password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := currentUser(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var req service.ChangePasswordInput
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if err := h.svc.ChangePassword(r.Context(), id.UserID, req, metaFor(r)); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	// every session was revoked, including this one
	h.cookies.clearAuthCookies(w)
	writeSuccess(w, http.StatusOK, "Password changed successfully. Please log in again.", nil)
}
