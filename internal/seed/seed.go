// Package seed creates the demo accounts used for local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
)

type Account struct {
	Name     string
	Email    string
	Role     models.Role
	Verified bool
	Active   bool
}

// DemoAccounts covers every role plus an unverified and a deactivated player.
var DemoAccounts = []Account{
	{Name: "Player User", Email: "player@example.com", Role: models.RolePlayer, Verified: true, Active: true},
	{Name: "Stadium Owner", Email: "owner@example.com", Role: models.RoleOwner, Verified: true, Active: true},
	{Name: "Employee User", Email: "employee@example.com", Role: models.RoleEmployee, Verified: true, Active: true},
	{Name: "Admin User", Email: "admin@example.com", Role: models.RoleAdmin, Verified: true, Active: true},
	{Name: "Unverified User", Email: "unverified@example.com", Role: models.RolePlayer, Verified: false, Active: true},
	{Name: "Inactive User", Email: "inactive@example.com", Role: models.RolePlayer, Verified: true, Active: false},
}

type Hasher interface {
	Hash(plain string) (string, error)
}

// Result lists the emails that were created and the ones that already existed.
type Result struct {
	Created []string
	Skipped []string
}

// Run inserts the accounts that do not exist yet. Existing rows are left
// untouched so running it twice is harmless.
func Run(ctx context.Context, users store.UserStore, hasher Hasher, password string, accounts []Account, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if password == "" {
		return nil, errors.New("seed password is empty")
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, acct := range accounts {
		email := strings.ToLower(strings.TrimSpace(acct.Email))
		if !acct.Role.Valid() {
			return res, fmt.Errorf("account %s: unknown role %q", email, acct.Role)
		}

		_, err := users.FindByEmail(ctx, email)
		if err == nil {
			res.Skipped = append(res.Skipped, email)
			logger.Info("seed account exists", "email", email)
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return res, fmt.Errorf("looking up %s: %w", email, err)
		}

		now := time.Now().UTC()
		u := &models.User{
			Email:        email,
			PasswordHash: hash,
			Name:         acct.Name,
			Role:         acct.Role,
			IsVerified:   acct.Verified,
			IsActive:     acct.Active,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Create(ctx, u); err != nil {
			return res, fmt.Errorf("creating %s: %w", email, err)
		}
		res.Created = append(res.Created, email)
		logger.Info("seed account created", "email", email, "role", acct.Role)
	}

	return res, nil
}
