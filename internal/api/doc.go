// Package api provides the HTTP REST API for Church Planner.
//
// It exposes registration and login, account administration, churches
// (tenants) and their scheduled events. Every protected route runs
// through authMiddleware, which resolves the caller from a bearer header,
// session cookie or (when enabled) query parameter, then through
// requirePermission where a route needs more than authentication. Tenant
// boundaries are enforced by the domain services; errors from all layers
// are translated to HTTP by writeAuthError.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
