package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/config"
	"gatekeeper/internal/db"
	"gatekeeper/internal/logging"
	"gatekeeper/internal/seed"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	password := flag.String("password", "Password123!", "password for every demo account")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		slog.Error("refusing to seed demo accounts in production")
		os.Exit(1)
	}

	logger, syncLogs := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	defer syncLogs()

	if err := run(cfg, *password, logger); err != nil {
		logger.Error("seeding failed", "error", err)
		syncLogs()
		os.Exit(1)
	}
}

func run(cfg *config.Config, password string, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	database, err := db.Open(ctx, db.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer database.Close()

	st := db.NewStore(database)
	res, err := seed.Run(ctx, st.Users(), auth.NewBcryptHasher(cfg.Auth.BcryptCost), password, seed.DemoAccounts, logger)
	if err != nil {
		return err
	}
	logger.Info("seeding complete", "created", len(res.Created), "skipped", len(res.Skipped))
	return nil
}
