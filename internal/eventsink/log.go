package eventsink

import (
	"context"
	"log/slog"

	"github.com/moonseer/church-planner-core/internal/auth"
)

// LogSink writes security events to the structured log. Failures and
// lockouts log at warn, everything else at info.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit logs ev.
func (s *LogSink) Emit(ctx context.Context, ev auth.SecurityEvent) {
	level := slog.LevelInfo
	switch ev.Type {
	case auth.EventLoginFailed, auth.EventLoginRejected, auth.EventAccountLocked:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{slog.String("type", string(ev.Type))}
	if ev.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", ev.AccountID))
	}
	if ev.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", ev.TenantID))
	}
	if ev.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", ev.ActorID))
	}
	if ev.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", ev.RemoteAddr))
	}
	for k, v := range ev.Details {
		attrs = append(attrs, slog.Any(k, v))
	}

	s.logger.LogAttrs(ctx, level, "security event", attrs...)
}
