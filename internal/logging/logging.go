// Package logging builds the process logger: a zap core exposed through the
// log/slog API so packages depend only on *slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level string
	// Format is "json" or "console".
	Format string
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewCore returns a zap core writing to w. JSON output uses ISO8601
// timestamps; console output uses the development encoder.
func NewCore(cfg Config, w io.Writer) zapcore.Core {
	lvl := levelFromString(cfg.Level)

	var enc zapcore.Encoder
	if cfg.Format == "console" {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encoderCfg)
	}
	return zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
}

// New returns a slog logger backed by zap writing to stdout, and a func that
// flushes buffered entries.
func New(cfg Config) (*slog.Logger, func()) {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg Config, w io.Writer) (*slog.Logger, func()) {
	core := NewCore(cfg, w)
	return slog.New(zapslog.NewHandler(core)), func() { _ = core.Sync() }
}

type RotationConfig struct {
	Dir  string
	Name string
	// MaxAge is how long rotated files are kept.
	MaxAge time.Duration
	// RotationTime is how often a new file is started.
	RotationTime time.Duration
}

// NewRotatingWriter opens a time-rotated file named <Name>.<YYYYMMDD> in Dir
// with a <Name> symlink to the current file.
func NewRotatingWriter(cfg RotationConfig) (io.WriteCloser, error) {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	if cfg.RotationTime <= 0 {
		cfg.RotationTime = 24 * time.Hour
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, err
	}

	base := filepath.Join(cfg.Dir, cfg.Name)
	return rotatelogs.New(
		base+".%Y%m%d",
		rotatelogs.WithLinkName(base),
		rotatelogs.WithMaxAge(cfg.MaxAge),
		rotatelogs.WithRotationTime(cfg.RotationTime),
	)
}
