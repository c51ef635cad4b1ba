package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gatekeeper/internal/models"
)

type TokenRepository struct {
	q sqlx.ExtContext
}

func NewTokenRepository(q sqlx.ExtContext) *TokenRepository {
	return &TokenRepository{q: q}
}

func (r *TokenRepository) Create(ctx context.Context, t *models.SingleUseToken) error {
	if t.ID == "" {
		id, err := GenerateID("tok")
		if err != nil {
			return fmt.Errorf("generating token ID: %w", err)
		}
		t.ID = id
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()

	_, err := sqlx.NamedExecContext(ctx, r.q,
		`INSERT INTO single_use_tokens (id, user_id, token_hash, purpose, expires_at, created_at)
		 VALUES (:id, :user_id, :token_hash, :purpose, :expires_at, :created_at)`,
		t,
	)
	if err != nil {
		return writeErr(err, "creating single-use token")
	}
	return nil
}

func (r *TokenRepository) InvalidateForUser(ctx context.Context, userID string, purpose models.TokenPurpose) (int64, error) {
	result, err := r.q.ExecContext(ctx, r.q.Rebind(
		`DELETE FROM single_use_tokens WHERE user_id = ? AND purpose = ? AND used_at IS NULL`),
		userID, purpose,
	)
	if err != nil {
		return 0, fmt.Errorf("invalidating tokens: %w", err)
	}
	return result.RowsAffected()
}

func (r *TokenRepository) FindActive(ctx context.Context, tokenHash string, purpose models.TokenPurpose, now time.Time) (*models.SingleUseToken, error) {
	var token models.SingleUseToken
	err := sqlx.GetContext(ctx, r.q, &token, r.q.Rebind(
		`SELECT id, user_id, token_hash, purpose, expires_at, used_at, created_at
		   FROM single_use_tokens
		  WHERE token_hash = ?
		    AND purpose = ?
		    AND used_at IS NULL
		    AND expires_at > ?`),
		tokenHash, purpose, now.UTC(),
	)
	if err != nil {
		return nil, notFound(err, "finding single-use token")
	}
	return &token, nil
}

func (r *TokenRepository) Consume(ctx context.Context, tokenHash string, purpose models.TokenPurpose, now time.Time) (*models.SingleUseToken, error) {
	now = now.UTC()
	token := models.SingleUseToken{
		TokenHash: tokenHash,
		Purpose:   purpose,
		UsedAt:    &now,
	}

	row := r.q.QueryRowxContext(ctx, r.q.Rebind(
		`UPDATE single_use_tokens
		    SET used_at = ?
		  WHERE token_hash = ?
		    AND purpose = ?
		    AND used_at IS NULL
		    AND expires_at > ?
		  RETURNING id, user_id`),
		now, tokenHash, purpose, now,
	)
	if err := row.Scan(&token.ID, &token.UserID); err != nil {
		return nil, notFound(err, "consuming single-use token")
	}
	return &token, nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.q.ExecContext(ctx, r.q.Rebind(
		`DELETE FROM single_use_tokens WHERE expires_at <= ? OR used_at IS NOT NULL`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired single-use tokens: %w", err)
	}
	return result.RowsAffected()
}
