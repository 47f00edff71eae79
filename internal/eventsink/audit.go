package eventsink

import (
	"context"
	"log/slog"
	"maps"

	"github.com/moonseer/church-planner-core/internal/audit"
	"github.com/moonseer/church-planner-core/internal/auth"
)

// Audit entries written for security events use these constants.
const (
	auditEntityAccount = "account"
	auditSourceAPI     = "api"
)

// AuditSink persists security events to the audit log.
type AuditSink struct {
	repo   audit.Repository
	logger *slog.Logger
}

// NewAuditSink creates a sink writing through repo.
func NewAuditSink(repo audit.Repository, logger *slog.Logger) *AuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditSink{repo: repo, logger: logger}
}

// Emit writes ev as an audit entry. Write failures are logged, not returned.
func (s *AuditSink) Emit(ctx context.Context, ev auth.SecurityEvent) {
	entry := AuditEntry(ev)
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}

// AuditEntry maps a security event onto an audit log row. The actor
// defaults to the account itself for self-service events like login.
func AuditEntry(ev auth.SecurityEvent) *audit.AuditLog {
	userID := ev.ActorID
	if userID == "" {
		userID = ev.AccountID
	}

	var details map[string]any
	if len(ev.Details) > 0 || ev.RemoteAddr != "" {
		details = make(map[string]any, len(ev.Details)+1)
		maps.Copy(details, ev.Details)
		if ev.RemoteAddr != "" {
			details["remote_addr"] = ev.RemoteAddr
		}
	}

	return &audit.AuditLog{
		Action:     string(ev.Type),
		EntityType: auditEntityAccount,
		EntityID:   ev.AccountID,
		UserID:     userID,
		TenantID:   ev.TenantID,
		Source:     auditSourceAPI,
		Details:    details,
		CreatedAt:  ev.OccurredAt,
	}
}
