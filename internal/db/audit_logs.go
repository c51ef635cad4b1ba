package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
)

type AuditLogRepository struct {
	q sqlx.ExtContext
}

func NewAuditLogRepository(q sqlx.ExtContext) *AuditLogRepository {
	return &AuditLogRepository{q: q}
}

func (r *AuditLogRepository) Append(ctx context.Context, e *models.AuditLogEntry) error {
	if e.ID == "" {
		id, err := GenerateID("aud")
		if err != nil {
			return fmt.Errorf("generating audit log ID: %w", err)
		}
		e.ID = id
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := sqlx.NamedExecContext(ctx, r.q,
		`INSERT INTO audit_logs (id, actor_user_id, action, entity_type, entity_id, before_json, after_json,
			ip_address, user_agent, created_at)
		 VALUES (:id, :actor_user_id, :action, :entity_type, :entity_id, :before_json, :after_json,
			:ip_address, :user_agent, :created_at)`,
		e,
	)
	if err != nil {
		return fmt.Errorf("appending audit log: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (r *AuditLogRepository) List(ctx context.Context, f store.AuditFilter) ([]*models.AuditLogEntry, error) {
	f = f.Normalize()

	var (
		where []string
		args  []any
	)
	if f.ActorUserID != "" {
		where = append(where, "actor_user_id = ?")
		args = append(args, f.ActorUserID)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, f.To.UTC())
	}

	query := `SELECT id, actor_user_id, action, entity_type, entity_id, before_json, after_json,
		ip_address, user_agent, created_at FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	entries := []*models.AuditLogEntry{}
	if err := sqlx.SelectContext(ctx, r.q, &entries, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	return entries, nil
}
