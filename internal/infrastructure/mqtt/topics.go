package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "churchplanner"

// Topics builds Church Planner MQTT topics under a configurable prefix.
//
// Security events are published per event type, with an optional tenant
// segment so church-scoped consumers can subscribe to their own stream:
//
//	topics := mqtt.NewTopics("churchplanner")
//	topics.SecurityEvent("login.failed")            // churchplanner/security/login.failed
//	topics.TenantSecurityEvent("ch-1", "login.failed") // churchplanner/tenant/ch-1/security/login.failed
type Topics struct {
	prefix string
}

// NewTopics returns a builder rooted at prefix. Leading and trailing
// slashes are trimmed.
func NewTopics(prefix string) Topics {
	p := strings.Trim(prefix, "/")
	if p == "" {
		p = DefaultTopicPrefix
	}
	return Topics{prefix: p}
}

// Prefix returns the root every topic is built under.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// SystemStatus is the retained online/offline topic for this process.
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// SecurityEvent returns the topic for a security event type.
func (t Topics) SecurityEvent(eventType string) string {
	return fmt.Sprintf("%s/security/%s", t.Prefix(), eventType)
}

// TenantSecurityEvent returns the church-scoped topic for a security event.
// An empty tenant falls back to SecurityEvent.
func (t Topics) TenantSecurityEvent(tenantID, eventType string) string {
	if tenantID == "" {
		return t.SecurityEvent(eventType)
	}
	return fmt.Sprintf("%s/tenant/%s/security/%s", t.Prefix(), tenantID, eventType)
}

// AllSecurityEvents is the wildcard for every unscoped security event.
func (t Topics) AllSecurityEvents() string {
	return t.Prefix() + "/security/#"
}
