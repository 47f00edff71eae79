package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/moonseer/church-planner-core/internal/auth"
	"github.com/moonseer/church-planner-core/internal/schedule"
)

// handleListEvents returns events of the caller's church.
//
// Query parameters:
//   - from, to: RFC3339 bounds; events overlapping the range are returned
//   - tenant_id: church to list (superadmin; others must name their own)
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	caller := identity(r)
	q := r.URL.Query()

	tenantID := q.Get("tenant_id")
	if tenantID == "" {
		tenantID = caller.TenantID
	}
	if tenantID == "" {
		writeBadRequest(w, "tenant_id is required")
		return
	}

	var (
		rng schedule.Range
		err error
	)
	if rng.From, err = parseTimeParam(q.Get("from"), "from"); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if rng.To, err = parseTimeParam(q.Get("to"), "to"); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	list, err := s.events.List(r.Context(), caller, tenantID, rng)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if list == nil {
		list = []schedule.Event{}
	}
	writeData(w, http.StatusOK, list)
}

// handleGetEvent returns one event after the tenant check.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := s.events.Get(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, e)
}

// handleCreateEvent adds an event to the caller's church.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req schedule.NewEvent
	if err := decodeJSON(r, &req); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	e, err := s.events.Create(r.Context(), identity(r), req)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, e)
}

// handleUpdateEvent applies a partial update.
func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch schedule.EventPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	e, err := s.events.Update(r.Context(), identity(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, e)
}

// handleDeleteEvent removes an event.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.events.Delete(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseTimeParam parses an optional RFC3339 query value.
func parseTimeParam(v, name string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC3339 timestamp", auth.ErrValidation, name)
	}
	return t, nil
}
