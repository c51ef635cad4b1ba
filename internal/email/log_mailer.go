package email

import (
	"context"
	"log/slog"
)

// LogMailer logs messages instead of sending them. Used when no SMTP host
// is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger.With("component", "email")}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email not sent, smtp disabled", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}
