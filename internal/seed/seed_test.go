package seed

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/db"
	"gatekeeper/internal/models"
)

func openStore(t *testing.T) *db.Store {
	t.Helper()

	database, err := db.Open(context.Background(), db.Config{Driver: db.DriverSQLite, Path: filepath.Join(t.TempDir(), "seed.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return db.NewStore(database)
}

func TestRunCreatesAccountsOnce(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	res, err := Run(ctx, st.Users(), hasher, "Password123!", DemoAccounts, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Created) != len(DemoAccounts) || len(res.Skipped) != 0 {
		t.Fatalf("first Run() = %+v, want %d created", res, len(DemoAccounts))
	}

	admin, err := st.Users().FindByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("FindByEmail(admin) error = %v", err)
	}
	if admin.Role != models.RoleAdmin || !admin.IsVerified || !admin.IsActive {
		t.Fatalf("admin = %+v, want verified active ADMIN", admin)
	}
	if !hasher.Verify("Password123!", admin.PasswordHash) {
		t.Fatal("admin password hash does not verify")
	}

	inactive, err := st.Users().FindByEmail(ctx, "inactive@example.com")
	if err != nil {
		t.Fatalf("FindByEmail(inactive) error = %v", err)
	}
	if inactive.IsActive {
		t.Fatal("inactive account seeded as active")
	}

	unverified, err := st.Users().FindByEmail(ctx, "unverified@example.com")
	if err != nil {
		t.Fatalf("FindByEmail(unverified) error = %v", err)
	}
	if unverified.IsVerified {
		t.Fatal("unverified account seeded as verified")
	}

	res, err = Run(ctx, st.Users(), hasher, "Password123!", DemoAccounts, nil)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(res.Created) != 0 || len(res.Skipped) != len(DemoAccounts) {
		t.Fatalf("second Run() = %+v, want all skipped", res)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	if _, err := Run(ctx, st.Users(), hasher, "", DemoAccounts, nil); err == nil {
		t.Fatal("Run() with empty password succeeded")
	}

	bad := []Account{{Name: "Root", Email: "root@example.com", Role: "ROOT", Active: true}}
	if _, err := Run(ctx, st.Users(), hasher, "Password123!", bad, nil); err == nil {
		t.Fatal("Run() with unknown role succeeded")
	}
}
