package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/moonseer/church-planner-core/internal/audit"
	"github.com/moonseer/church-planner-core/internal/auth"
)

// handleListAuditLogs returns paginated audit log entries with optional filters.
// Non-superadmins only ever see their own church's entries.
//
// Query parameters:
//   - action: filter by action (login.failed, role.changed, ...)
//   - entity_type: filter by entity type (account, church, event)
//   - entity_id: filter by specific entity ID
//   - user_id: filter by acting account
//   - since: RFC3339 lower bound on created_at
//   - tenant_id: church to inspect (superadmin only)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		s.writeAuthError(w, r, errors.New("audit logging not configured"))
		return
	}

	caller := identity(r)
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
	}

	switch {
	case caller.IsSuperAdmin():
		filter.TenantID = q.Get("tenant_id")
	case caller.HasTenant():
		if err := auth.AssertSameTenant(orDefault(q.Get("tenant_id"), caller.TenantID), caller); err != nil {
			s.writeAuthError(w, r, err)
			return
		}
		filter.TenantID = caller.TenantID
	default:
		s.writeAuthError(w, r, auth.ErrForbidden)
		return
	}

	var err error
	if filter.Since, err = parseTimeParam(q.Get("since"), "since"); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if filter.Limit, err = parseIntParam(q.Get("limit"), "limit"); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if filter.Offset, err = parseIntParam(q.Get("offset"), "offset"); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.writeAuthError(w, r, fmt.Errorf("listing audit logs: %w", err))
		return
	}

	writeData(w, http.StatusOK, result)
}

// parseIntParam parses an optional non-negative integer query value.
func parseIntParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", auth.ErrValidation, name)
	}
	return n, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
