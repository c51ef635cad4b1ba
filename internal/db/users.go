package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
)

const userColumns = `id, email, phone, password_hash, name, role, is_verified, is_active,
	failed_login_attempts, locked_until, last_login_at, created_at, updated_at`

type UserRepository struct {
	q sqlx.ExtContext
}

func NewUserRepository(q sqlx.ExtContext) *UserRepository {
	return &UserRepository{q: q}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		id, err := GenerateID("usr")
		if err != nil {
			return fmt.Errorf("generating user ID: %w", err)
		}
		u.ID = id
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	_, err := sqlx.NamedExecContext(ctx, r.q,
		`INSERT INTO users (id, email, phone, password_hash, name, role, is_verified, is_active,
			failed_login_attempts, created_at, updated_at)
		 VALUES (:id, :email, :phone, :password_hash, :name, :role, :is_verified, :is_active,
			0, :created_at, :updated_at)`,
		u,
	)
	if err != nil {
		return writeErr(err, "creating user")
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = ?`, phone)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var u models.User
	if err := sqlx.GetContext(ctx, r.q, &u, r.q.Rebind(query), args...); err != nil {
		return nil, notFound(err, "querying user")
	}
	return &u, nil
}

func (r *UserRepository) RecordFailedLogin(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (int, error) {
	var attempts int
	err := sqlx.GetContext(ctx, r.q, &attempts, r.q.Rebind(
		`UPDATE users
		    SET failed_login_attempts = failed_login_attempts + 1,
		        locked_until = CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE locked_until END,
		        updated_at = ?
		  WHERE id = ?
		  RETURNING failed_login_attempts`),
		threshold, lockUntil.UTC(), now.UTC(), id,
	)
	if err != nil {
		return 0, notFound(err, "recording failed login")
	}
	return attempts, nil
}

func (r *UserRepository) ResetLoginState(ctx context.Context, id string, now time.Time) error {
	return r.exec(ctx, "resetting login state",
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = ? WHERE id = ?`,
		now.UTC(), id)
}

func (r *UserRepository) MarkLoggedIn(ctx context.Context, id string, now time.Time) error {
	return r.exec(ctx, "marking login",
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, last_login_at = ?, updated_at = ? WHERE id = ?`,
		now.UTC(), now.UTC(), id)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	return r.exec(ctx, "updating password",
		`UPDATE users SET password_hash = ?, failed_login_attempts = 0, locked_until = NULL, updated_at = ? WHERE id = ?`,
		passwordHash, now.UTC(), id)
}

func (r *UserRepository) MarkVerified(ctx context.Context, id string, now time.Time) error {
	return r.exec(ctx, "marking user verified",
		`UPDATE users SET is_verified = ?, updated_at = ? WHERE id = ?`,
		true, now.UTC(), id)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd store.ProfileUpdate, now time.Time) error {
	query := `UPDATE users SET updated_at = ?`
	args := []any{now.UTC()}

	if upd.Name != nil {
		query += `, name = ?`
		args = append(args, *upd.Name)
	}
	if upd.Email != nil {
		query += `, email = ?`
		args = append(args, *upd.Email)
	}
	if upd.Phone != nil {
		if *upd.Phone == "" {
			query += `, phone = NULL`
		} else {
			query += `, phone = ?`
			args = append(args, *upd.Phone)
		}
	}
	if upd.ClearVerified {
		query += `, is_verified = ?`
		args = append(args, false)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return writeErr(err, "updating profile")
	}
	return checkRowsAffected(result)
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	return r.exec(ctx, "updating active flag",
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, now.UTC(), id)
}

func (r *UserRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return checkRowsAffected(result)
}
