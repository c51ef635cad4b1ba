package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gatekeeper/internal/models"
)

type SessionRepository struct {
	q sqlx.ExtContext
}

func NewSessionRepository(q sqlx.ExtContext) *SessionRepository {
	return &SessionRepository{q: q}
}

func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	if s.ID == "" {
		id, err := GenerateID("ses")
		if err != nil {
			return fmt.Errorf("generating session ID: %w", err)
		}
		s.ID = id
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()

	_, err := sqlx.NamedExecContext(ctx, r.q,
		`INSERT INTO sessions (id, user_id, token_hash, ip_address, user_agent, expires_at, created_at, updated_at)
		 VALUES (:id, :user_id, :token_hash, :ip_address, :user_agent, :expires_at, :created_at, :updated_at)`,
		s,
	)
	if err != nil {
		return writeErr(err, "creating session")
	}
	return nil
}

// Rotate is a single conditional update so that of two concurrent refreshes
// presenting the same token only one matches.
func (r *SessionRepository) Rotate(ctx context.Context, userID, oldHash, newHash string, expiresAt, now time.Time) error {
	result, err := r.q.ExecContext(ctx, r.q.Rebind(
		`UPDATE sessions
		    SET token_hash = ?, expires_at = ?, updated_at = ?
		  WHERE user_id = ?
		    AND token_hash = ?
		    AND expires_at > ?`),
		newHash, expiresAt.UTC(), now.UTC(), userID, oldHash, now.UTC(),
	)
	if err != nil {
		return writeErr(err, "rotating session")
	}
	return checkRowsAffected(result)
}

func (r *SessionRepository) DeleteActiveForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, r.q.Rebind(
		`DELETE FROM sessions WHERE user_id = ? AND expires_at > ?`), userID, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting active sessions: %w", err)
	}
	return result.RowsAffected()
}

func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM sessions WHERE user_id = ?`), userID)
	if err != nil {
		return 0, fmt.Errorf("deleting sessions: %w", err)
	}
	return result.RowsAffected()
}

func (r *SessionRepository) CountActiveForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, r.q.Rebind(
		`SELECT COUNT(*) FROM sessions WHERE user_id = ? AND expires_at > ?`), userID, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected()
}
