package audit

import (
	"context"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gatekeeper/internal/models"
	"gatekeeper/internal/store"
)

// StoreSink appends entries to the audit_logs table.
type StoreSink struct {
	store store.AuditStore
}

func NewStoreSink(s store.AuditStore) *StoreSink {
	return &StoreSink{store: s}
}

func (s *StoreSink) Write(ctx context.Context, entry *models.AuditLogEntry) error {
	return s.store.Append(ctx, entry)
}

// FileSink writes one JSON line per entry.
type FileSink struct {
	logger *zap.Logger
}

func NewFileSink(w io.Writer) *FileSink {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.MessageKey = "event"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(w), zapcore.InfoLevel)
	return &FileSink{logger: zap.New(core)}
}

func (s *FileSink) Write(_ context.Context, entry *models.AuditLogEntry) error {
	fields := []zap.Field{
		zap.String("id", entry.ID),
		zap.String("action", entry.Action),
		zap.String("entity_type", entry.EntityType),
		zap.String("ip_address", entry.IPAddress),
		zap.String("user_agent", entry.UserAgent),
		zap.Time("created_at", entry.CreatedAt),
	}
	if entry.ActorUserID != nil {
		fields = append(fields, zap.String("actor_user_id", *entry.ActorUserID))
	}
	if entry.EntityID != nil {
		fields = append(fields, zap.String("entity_id", *entry.EntityID))
	}
	if entry.BeforeJSON != nil {
		fields = append(fields, zap.String("before", *entry.BeforeJSON))
	}
	if entry.AfterJSON != nil {
		fields = append(fields, zap.String("after", *entry.AfterJSON))
	}

	s.logger.Info("audit", fields...)
	return nil
}

func (s *FileSink) Sync() error {
	return s.logger.Sync()
}
