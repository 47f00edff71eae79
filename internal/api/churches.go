package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moonseer/church-planner-core/internal/tenant"
)

// handleCreateChurch creates a church. A caller without a church becomes
// its admin.
func (s *Server) handleCreateChurch(w http.ResponseWriter, r *http.Request) {
	var req tenant.NewChurch
	if err := decodeJSON(r, &req); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	c, err := s.churches.Create(r.Context(), identity(r), req, requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, c)
}

// handleGetChurch returns one church after the tenant check.
func (s *Server) handleGetChurch(w http.ResponseWriter, r *http.Request) {
	c, err := s.churches.Get(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, c)
}

// handleListChurches returns every church (superadmin).
func (s *Server) handleListChurches(w http.ResponseWriter, r *http.Request) {
	list, err := s.churches.List(r.Context(), identity(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if list == nil {
		list = []tenant.Church{}
	}
	writeData(w, http.StatusOK, list)
}
