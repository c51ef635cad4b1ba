package models

import "time"

type Role string

const (
	RolePlayer   Role = "PLAYER"
	RoleOwner    Role = "OWNER"
	RoleEmployee Role = "EMPLOYEE"
	RoleAdmin    Role = "ADMIN"
)

var Roles = []Role{RolePlayer, RoleOwner, RoleEmployee, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleOwner, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID                  string     `db:"id"`
	Email               string     `db:"email"`
	Phone               *string    `db:"phone"`
	PasswordHash        string     `db:"password_hash"`
	Name                string     `db:"name"`
	Role                Role       `db:"role"`
	IsVerified          bool       `db:"is_verified"`
	IsActive            bool       `db:"is_active"`
	FailedLoginAttempts int        `db:"failed_login_attempts"`
	LockedUntil         *time.Time `db:"locked_until"`
	LastLoginAt         *time.Time `db:"last_login_at"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

// PublicUser is the client-facing projection of a User. It never carries the
// password hash or lockout bookkeeping.
type PublicUser struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Phone       *string    `json:"phone,omitempty"`
	Name        string     `json:"name"`
	Role        Role       `json:"role"`
	IsVerified  bool       `json:"isVerified"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		Phone:       u.Phone,
		Name:        u.Name,
		Role:        u.Role,
		IsVerified:  u.IsVerified,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
