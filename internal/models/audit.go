package models

import "time"

type AuditLogEntry struct {
	ID          string    `db:"id" json:"id"`
	ActorUserID *string   `db:"actor_user_id" json:"actorUserId,omitempty"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entityType"`
	EntityID    *string   `db:"entity_id" json:"entityId,omitempty"`
	BeforeJSON  *string   `db:"before_json" json:"before,omitempty"`
	AfterJSON   *string   `db:"after_json" json:"after,omitempty"`
	IPAddress   string    `db:"ip_address" json:"ipAddress"`
	UserAgent   string    `db:"user_agent" json:"userAgent"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
