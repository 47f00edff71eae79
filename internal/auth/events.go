package auth

import (
	"context"
	"time"
)

// EventType names a security-relevant occurrence.
type EventType string

// Security event types.
const (
	EventLoginSucceeded   EventType = "login.succeeded"
	EventLoginFailed      EventType = "login.failed"
	EventLoginRejected    EventType = "login.rejected" // locked or disabled
	EventAccountLocked    EventType = "account.locked"
	EventAccountUnlocked  EventType = "account.unlocked"
	EventAccountCreated   EventType = "account.created"
	EventPasswordChanged  EventType = "password.changed"
	EventRoleChanged      EventType = "role.changed"
	EventTenantChanged    EventType = "tenant.changed"
	EventActiveChanged    EventType = "active.changed"
	EventSecretHashUpdate EventType = "secret.rehashed"
)

// SecurityEvent is a record of something an operator may want to audit,
// alert on or graph. It never carries secrets.
type SecurityEvent struct {
	Type       EventType      `json:"type"`
	AccountID  string         `json:"account_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	RemoteAddr string         `json:"remote_addr,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// EventSink receives security events. Emit must not block the caller on
// slow I/O; implementations that talk to the network queue internally.
type EventSink interface {
	Emit(ctx context.Context, ev SecurityEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev SecurityEvent)

// Emit calls f.
func (f EventSinkFunc) Emit(ctx context.Context, ev SecurityEvent) {
	f(ctx, ev)
}

// Fanout delivers every event to each sink in order.
type Fanout []EventSink

// Emit forwards ev to every non-nil sink.
func (f Fanout) Emit(ctx context.Context, ev SecurityEvent) {
	for _, s := range f {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

type discardSink struct{}

func (discardSink) Emit(context.Context, SecurityEvent) {}

// DiscardEvents is an EventSink that drops everything.
var DiscardEvents EventSink = discardSink{}
