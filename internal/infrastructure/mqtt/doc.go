// Package mqtt provides MQTT publishing for Church Planner.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Security events (logins, lockouts, role changes) are fanned out to the
// broker so external monitors can react without polling the audit log.
// Publishing is optional and disabled unless mqtt.enabled is set.
//
//	Church Planner Core -> MQTT Broker -> monitors, alerting
//
// # Topics
//
//	{prefix}/system/status                        retained online/offline
//	{prefix}/security/{event_type}                every security event
//	{prefix}/tenant/{church_id}/security/{type}   church-scoped copy
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Payloads never contain passwords, hashes or tokens
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().SecurityEvent("account.locked")
//	err = client.PublishJSON(topic, event)
package mqtt
