package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatekeeper/internal/models"
	"gatekeeper/internal/service"
)

const (
	msgForgotPasswordSent = "If an account exists with this email, a password reset link has been sent"
	msgVerificationSent   = "If the account exists and is not yet verified, a verification email has been sent"
)

type AuthHandler struct {
	svc     *service.AuthService
	cookies CookieConfig
	logger  *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies, logger: logger}
}

func metaFor(r *http.Request) service.RequestMeta {
	return service.RequestMeta{IP: clientIP(r), UserAgent: r.UserAgent()}
}

type sessionResponse struct {
	User       *models.PublicUser `json:"user"`
	ExpiresAt  time.Time          `json:"expiresAt"`
	RedirectTo string             `json:"redirectTo,omitempty"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	user, err := h.svc.Register(r.Context(), req, metaFor(r))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Registration successful. Please check your email to verify your account.", map[string]any{
		"user": user,
	})
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req, metaFor(r))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	h.cookies.setAuthCookies(w, res.Tokens)
	writeSuccess(w, http.StatusOK, "Login successful", sessionResponse{
		User:       res.User,
		ExpiresAt:  res.Tokens.ExpiresAt,
		RedirectTo: res.RedirectTo,
	})
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context(), refreshTokenFrom(r), metaFor(r))
	if err != nil {
		h.cookies.clearAuthCookies(w)
		writeAppError(w, r, h.logger, err)
		return
	}

	h.cookies.setAuthCookies(w, res.Tokens)
	writeSuccess(w, http.StatusOK, "Token refreshed", sessionResponse{
		User:      res.User,
		ExpiresAt: res.Tokens.ExpiresAt,
	})
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context(), service.LogoutInput{
		AccessToken:  accessTokenFrom(r),
		RefreshToken: refreshTokenFrom(r),
	}, metaFor(r))

	h.cookies.clearAuthCookies(w)
	writeSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

type emailRequest struct {
	Email string `json:"email"`
}

// POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), req.Email, metaFor(r)); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgForgotPasswordSent, nil)
}

// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetPasswordInput
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req, metaFor(r)); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Password reset successful. Please log in with your new password.", nil)
}

// POST /api/v1/auth/verify
func (h *AuthHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if err := h.svc.RequestEmailVerification(r.Context(), req.Email, metaFor(r)); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgVerificationSent, nil)
}

// GET /api/v1/auth/verify/{token}
func (h *AuthHandler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.ConfirmEmailVerification(r.Context(), chi.URLParam(r, "token"), metaFor(r))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Email verified successfully", map[string]any{
		"user": user,
	})
}
