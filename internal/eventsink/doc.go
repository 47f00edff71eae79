// Package eventsink delivers auth security events to their destinations:
// the audit log, the structured log, the MQTT broker and InfluxDB.
//
// Network-backed sinks are wrapped in Async so a slow broker or database
// never adds latency to a login request:
//
//	sinks := auth.Fanout{
//	    eventsink.NewLogSink(logger),
//	    eventsink.NewAsync(eventsink.NewAuditSink(auditRepo, logger), 256, logger),
//	}
package eventsink
