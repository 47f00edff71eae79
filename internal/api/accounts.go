package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moonseer/church-planner-core/internal/auth"
)

type setRoleRequest struct {
	Role auth.Role `json:"role"`
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

type assignTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

// handleListAccounts lists the accounts of the caller's church. A
// superadmin may pass tenant_id to list another church.
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	caller := identity(r)

	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		tenantID = caller.TenantID
	}
	if tenantID == "" {
		writeBadRequest(w, "tenant_id is required")
		return
	}

	list, err := s.auth.ListAccounts(r.Context(), caller, tenantID)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if list == nil {
		list = []auth.Account{}
	}
	writeData(w, http.StatusOK, list)
}

// handleSetRole changes an account's role.
func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	acc, err := s.auth.SetRole(r.Context(), identity(r), chi.URLParam(r, "id"), req.Role, requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, acc)
}

// handleSetActive enables or disables an account.
func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if req.Active == nil {
		writeBadRequest(w, "active is required")
		return
	}

	acc, err := s.auth.SetActive(r.Context(), identity(r), chi.URLParam(r, "id"), *req.Active, requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, acc)
}

// handleUnlock clears an account's lockout.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	acc, err := s.auth.Unlock(r.Context(), identity(r), chi.URLParam(r, "id"), requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, acc)
}

// handleAssignTenant moves an account to another church (superadmin).
func (s *Server) handleAssignTenant(w http.ResponseWriter, r *http.Request) {
	var req assignTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if req.TenantID == "" {
		writeBadRequest(w, "tenant_id is required")
		return
	}

	caller := identity(r)
	if _, err := s.churches.Get(r.Context(), caller, req.TenantID); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	acc, err := s.auth.AssignTenant(r.Context(), caller, chi.URLParam(r, "id"), req.TenantID, requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, acc)
}
