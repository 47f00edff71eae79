package eventsink

import (
	"context"
	"log/slog"

	"github.com/moonseer/church-planner-core/internal/auth"
	"github.com/moonseer/church-planner-core/internal/infrastructure/mqtt"
)

// Publisher is the subset of *mqtt.Client the MQTT sink needs.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// MQTTSink publishes each event to {prefix}/security/{type} and, for
// church-scoped events, to {prefix}/tenant/{church}/security/{type}.
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	logger *slog.Logger
}

// NewMQTTSink creates an MQTTSink.
func NewMQTTSink(pub Publisher, topics mqtt.Topics, logger *slog.Logger) *MQTTSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTSink{pub: pub, topics: topics, logger: logger}
}

// Emit publishes ev. Publish failures are logged.
func (s *MQTTSink) Emit(_ context.Context, ev auth.SecurityEvent) {
	eventType := string(ev.Type)
	s.publish(s.topics.SecurityEvent(eventType), ev)
	if ev.TenantID != "" {
		s.publish(s.topics.TenantSecurityEvent(ev.TenantID, eventType), ev)
	}
}

func (s *MQTTSink) publish(topic string, ev auth.SecurityEvent) {
	if err := s.pub.PublishJSON(topic, ev); err != nil {
		s.logger.Warn("security event publish failed",
			"topic", topic,
			"error", err,
		)
	}
}
