package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"gatekeeper/internal/api"
	"gatekeeper/internal/audit"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/config"
	"gatekeeper/internal/db"
	"gatekeeper/internal/email"
	"gatekeeper/internal/logging"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, syncLogs := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	defer syncLogs()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		syncLogs()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server", "name", cfg.Server.Name, "environment", cfg.Server.Environment)

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
	logger.Info("database opened", "driver", cfg.Database.Driver)

	st := db.NewStore(database)
	health := map[string]api.HealthCheck{"database": st.Ping}

	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			// the limiter fails open, so an unreachable redis is not fatal
			logger.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		limiterStore = ratelimit.NewRedisStore(client, cfg.Redis.Prefix)
		health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		logger.Info("using redis rate limit store", "addr", cfg.Redis.Addr)
	}
	limiter := ratelimit.NewLimiter(limiterStore, map[ratelimit.Action]ratelimit.Rule{
		ratelimit.ActionLogin:          rule(cfg.RateLimit.Login),
		ratelimit.ActionRegister:       rule(cfg.RateLimit.Register),
		ratelimit.ActionPasswordReset:  rule(cfg.RateLimit.PasswordReset),
		ratelimit.ActionVerification:   rule(cfg.RateLimit.Verification),
		ratelimit.ActionChangePassword: rule(cfg.RateLimit.ChangePassword),
	}, logger)

	sinks := []audit.Sink{audit.NewStoreSink(st.AuditLogs())}
	if cfg.Logging.AuditDir != "" {
		w, err := logging.NewRotatingWriter(logging.RotationConfig{
			Dir:    cfg.Logging.AuditDir,
			Name:   "audit.log",
			MaxAge: cfg.Logging.AuditMaxAge,
		})
		if err != nil {
			return err
		}
		defer closeQuietly(w)
		sinks = append(sinks, audit.NewFileSink(w))
		logger.Info("audit file enabled", "dir", cfg.Logging.AuditDir)
	}
	recorder := audit.NewRecorder(audit.Config{BufferSize: cfg.Audit.BufferSize}, logger, sinks...)
	defer recorder.Close()

	var mailer email.Mailer
	switch cfg.Email.Driver {
	case "log":
		mailer = email.NewLogMailer(logger)
	default:
		mailer = email.NewSMTPMailer(email.SMTPConfig{
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			From:     cfg.Email.SMTP.From,
		}, logger)
	}
	dispatcher := email.NewDispatcher(mailer, email.DispatcherConfig{
		QueueSize: cfg.Email.QueueSize,
		PerSecond: cfg.Email.RatePerSecond,
		Burst:     cfg.Email.Burst,
	}, logger)
	defer dispatcher.Close(10 * time.Second)
	notifier := email.NewNotifier(dispatcher, email.NotifierConfig{
		AppName:         cfg.Email.AppName,
		BaseURL:         cfg.Server.BaseURL,
		VerificationTTL: cfg.Auth.VerificationTokenTTL,
		ResetTTL:        cfg.Auth.PasswordResetTTL,
	})
	logger.Info("email configured", "driver", cfg.Email.Driver)

	tokens := auth.NewJWTService(auth.JWTConfig{
		AccessSecret:    cfg.Auth.AccessSecret,
		RefreshSecret:   cfg.Auth.RefreshSecret,
		AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		Issuer:          cfg.Auth.Issuer,
		Audience:        cfg.Auth.Audience,
	}, nil)

	authService := service.NewAuthService(service.Deps{
		Store:     st,
		Hasher:    auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:    tokens,
		SingleUse: auth.NewSingleUseTokenService(cfg.Auth.VerificationTokenTTL, cfg.Auth.PasswordResetTTL),
		Lockout: auth.LockoutPolicy{
			Threshold: cfg.Auth.LockoutThreshold,
			Duration:  cfg.Auth.LockoutDuration,
		},
		Limiter:  limiter,
		Audit:    recorder,
		Notifier: notifier,
		Logger:   logger,
	}, service.Config{
		RequireVerifiedEmail:   cfg.Auth.VerifiedEmailRequired(),
		AllowAdminRegistration: cfg.Auth.AllowAdminRegistration,
	})
	adminService := service.NewAdminService(st, st.AuditLogs(), recorder, nil)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go db.NewCleanupService(st, cfg.Auth.CleanupInterval, logger).Start(cleanupCtx)

	server, err := api.NewServer(api.Options{
		Name:                cfg.Server.Name,
		Environment:         cfg.Server.Environment,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		TrustedProxies:      cfg.Server.TrustedProxies,
		MaxBodyBytes:        cfg.Server.MaxBodyBytes,
		IPRequestsPerMinute: cfg.RateLimit.IPRequestsPerMinute,
		Cookies: api.CookieConfig{
			Secure:     cfg.IsProduction(),
			AccessTTL:  cfg.Auth.AccessTokenTTL,
			RefreshTTL: cfg.Auth.RefreshTokenTTL,
		},
	}, api.Deps{
		Auth:   authService,
		Admin:  adminService,
		Tokens: tokens,
		Audit:  recorder,
		Health: health,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

func rule(r config.LimitRule) ratelimit.Rule {
	return ratelimit.Rule{Limit: r.Limit, Window: r.Window}
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
