package db

import (
	"context"
	"log/slog"
	"time"

	"gatekeeper/internal/store"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
)

// CleanupService periodically removes expired sessions and spent or expired
// single-use tokens.
type CleanupService struct {
	sessions store.SessionStore
	tokens   store.TokenStore
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewCleanupService(s store.Store, interval time.Duration, logger *slog.Logger) *CleanupService {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupService{
		sessions: s.Sessions(),
		tokens:   s.Tokens(),
		interval: interval,
		now:      time.Now,
		logger:   logger.With("component", "cleanup"),
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	s.logger.Info("starting token cleanup service", "interval", s.interval)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping token cleanup service")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *CleanupService) RunOnce(ctx context.Context) {
	now := s.now()

	sessionsDeleted, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error("error deleting expired sessions", "error", err)
	} else if sessionsDeleted > 0 {
		s.logger.Info("deleted expired sessions", "count", sessionsDeleted)
	}

	tokensDeleted, err := s.tokens.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error("error deleting expired single-use tokens", "error", err)
	} else if tokensDeleted > 0 {
		s.logger.Info("deleted expired single-use tokens", "count", tokensDeleted)
	}
}
