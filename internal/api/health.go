package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each backend probe.
const healthCheckTimeout = 2 * time.Second

// Health states.
const (
	healthOK          = "ok"
	healthDegraded    = "degraded"
	healthUnhealthy   = "unhealthy"
	healthUnavailable = "unavailable"
)

// healthReport is the body of GET /health.
type healthReport struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// handleHealth reports the database and optional backends. Only a failed
// database makes the service unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := healthReport{
		Status:  healthOK,
		Version: s.version,
		Checks:  make(map[string]string, len(s.optional)+1),
	}

	report.Checks["database"] = s.probe(r.Context(), "database", s.database)
	for name, hc := range s.optional {
		if hc == nil {
			continue
		}
		report.Checks[name] = s.probe(r.Context(), name, hc)
		if report.Checks[name] != healthOK {
			report.Status = healthDegraded
		}
	}

	status := http.StatusOK
	if report.Checks["database"] != healthOK {
		report.Status = healthUnhealthy
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, envelope{Success: status == http.StatusOK, Data: report})
}

func (s *Server) probe(ctx context.Context, name string, hc HealthChecker) string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := hc.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", "component", name, "error", err)
		return healthUnavailable
	}
	return healthOK
}
