package notify

import (
	"context"
	"log/slog"

	"github.com/sendwerk/outbox/pkg/dispatch"
)

// Slog is a dispatch.Notifier that writes notifications to a structured
// logger. Success maps to info, everything else to warn.
type Slog struct {
	log *slog.Logger
}

// NewSlog creates a logger-backed notifier.
func NewSlog(log *slog.Logger) *Slog {
	return &Slog{log: log}
}

// Notify implements dispatch.Notifier.
func (s *Slog) Notify(ctx context.Context, message string, severity dispatch.Severity) {
	level := slog.LevelWarn
	if severity == dispatch.SeveritySuccess {
		level = slog.LevelInfo
	}
	s.log.Log(ctx, level, message, slog.String("severity", string(severity)))
}
