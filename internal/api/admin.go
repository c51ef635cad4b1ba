package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gatekeeper/internal/apperr"
	"gatekeeper/internal/models"
	"gatekeeper/internal/service"
	"gatekeeper/internal/store"
)

type AdminHandler struct {
	svc    *service.AdminService
	logger *slog.Logger
}

func NewAdminHandler(svc *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

type auditLogResponse struct {
	ID          string          `json:"id"`
	ActorUserID *string         `json:"actorUserId"`
	Action      string          `json:"action"`
	EntityType  string          `json:"entityType"`
	EntityID    *string         `json:"entityId"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	IPAddress   string          `json:"ipAddress"`
	UserAgent   string          `json:"userAgent"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func rawJSON(s *string) json.RawMessage {
	if s == nil || *s == "" {
		return nil
	}
	return json.RawMessage(*s)
}

func toAuditLogResponse(e *models.AuditLogEntry) auditLogResponse {
	return auditLogResponse{
		ID:          e.ID,
		ActorUserID: e.ActorUserID,
		Action:      e.Action,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Before:      rawJSON(e.BeforeJSON),
		After:       rawJSON(e.AfterJSON),
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		CreatedAt:   e.CreatedAt,
	}
}

func parseAuditFilter(r *http.Request) (store.AuditFilter, error) {
	q := r.URL.Query()
	f := store.AuditFilter{
		ActorUserID: q.Get("actorUserId"),
		Action:      q.Get("action"),
		EntityType:  q.Get("entityType"),
		EntityID:    q.Get("entityId"),
	}

	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, apperr.Validation("Validation failed", name+" must be an RFC3339 timestamp")
		}
		*dst = &t
	}

	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, apperr.Validation("Validation failed", name+" must be a non-negative integer")
		}
		*dst = n
	}

	return f, nil
}

// GET /api/v1/admin/audit-logs
func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	id, err := currentUser(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	f, err := parseAuditFilter(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	entries, err := h.svc.ListAuditLogs(r.Context(), id.UserID, f, metaFor(r))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	resp := make([]auditLogResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toAuditLogResponse(e))
	}
	f = f.Normalize()
	writeSuccess(w, http.StatusOK, "Audit logs retrieved", map[string]any{
		"entries": resp,
		"limit":   f.Limit,
		"offset":  f.Offset,
	})
}

// POST /api/v1/admin/users/{id}/deactivate
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := currentUser(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	user, err := h.svc.DeactivateUser(r.Context(), id.UserID, chi.URLParam(r, "id"), metaFor(r))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User deactivated", map[string]any{"user": user})
}

// POST /api/v1/admin/users/{id}/activate
func (h *AdminHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := currentUser(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	user, err := h.svc.ActivateUser(r.Context(), id.UserID, chi.URLParam(r, "id"), metaFor(r))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User activated", map[string]any{"user": user})
}
