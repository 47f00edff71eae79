// Package influxdb provides InfluxDB connectivity for Church Planner.
//
// It wraps the official influxdb-client-go v2 library for recording
// security event counters (logins, failures, lockouts) per church so
// dashboards can chart authentication activity over time.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("security_events",
//	    map[string]string{"type": "login.succeeded"},
//	    map[string]any{"count": 1})
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval).
// Batch failures are delivered to the SetOnError callback. Connection and
// health check errors are returned directly.
package influxdb
