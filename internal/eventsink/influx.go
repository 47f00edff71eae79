package eventsink

import (
	"context"
	"time"

	"github.com/moonseer/church-planner-core/internal/auth"
)

// MeasurementSecurityEvents is the InfluxDB measurement events are written to.
const MeasurementSecurityEvents = "security_events"

// PointWriter is the subset of *influxdb.Client the metrics sink needs.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

// InfluxSink records one point per event, tagged by type and church.
// Account IDs are fields, not tags, to keep series cardinality bounded.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates an InfluxSink.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Emit writes ev as a point.
func (s *InfluxSink) Emit(_ context.Context, ev auth.SecurityEvent) {
	tags := map[string]string{"type": string(ev.Type)}
	if ev.TenantID != "" {
		tags["tenant_id"] = ev.TenantID
	}

	fields := map[string]any{"count": 1}
	if ev.AccountID != "" {
		fields["account_id"] = ev.AccountID
	}

	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	s.w.WritePointWithTime(MeasurementSecurityEvents, tags, fields, ts)
}
