package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/moonseer/church-planner-core/internal/auth"
	"github.com/moonseer/church-planner-core/internal/infrastructure/config"
	"github.com/moonseer/church-planner-core/internal/infrastructure/reporting"
	"github.com/moonseer/church-planner-core/internal/schedule"
	"github.com/moonseer/church-planner-core/internal/tenant"
)

// Client-facing messages. Authentication failures never say which check
// failed.
const (
	msgAuthRequired       = "Authentication required"
	msgInvalidToken       = "Invalid or expired token"
	msgInvalidCredentials = "Invalid credentials"
	msgAccountDisabled    = "Account is disabled"
	msgAccountLocked      = "Account is temporarily locked. Try again in %s."
	msgRateLimited        = "Too many requests. Try again later."
	msgForbidden          = "Insufficient permissions"
	msgNotFound           = "Resource not found"
	msgInternal           = "Internal server error"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ruleFailure is one entry of the details list for a password policy error.
type ruleFailure struct {
	Rule    auth.Rule `json:"rule"`
	Message string    `json:"message"`
}

// writeJSON writes v as-is with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeData writes a success envelope around data.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError writes a failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Error: message})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// writeTooManyRequests writes a 429 with Retry-After in whole seconds.
func writeTooManyRequests(w http.ResponseWriter, retryAfterSeconds float64, message string) {
	secs := max(int(math.Ceil(retryAfterSeconds)), 1)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, message)
}

// lockedMessage names the time left on a lock, rounded up to whole seconds
// so it agrees with Retry-After.
func lockedMessage(remaining time.Duration) string {
	secs := max(int64(math.Ceil(remaining.Seconds())), 1)
	return fmt.Sprintf(msgAccountLocked, time.Duration(secs)*time.Second)
}

// decodeJSON reads a single JSON object from the request body into v.
// Unknown fields are rejected so typos in field names surface as 400s.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body too large", auth.ErrValidation)
		}
		return fmt.Errorf("%w: invalid JSON body: %s", auth.ErrValidation, err.Error())
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", auth.ErrValidation)
	}
	return nil
}

// writeAuthError is the single translation of domain errors into HTTP
// responses. Unknown errors are logged, reported and answered with 500.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		policyErr *auth.PolicyError
		lockedErr *auth.LockedError
	)

	switch {
	case errors.As(err, &policyErr):
		details := make([]ruleFailure, len(policyErr.Failed))
		for i, rule := range policyErr.Failed {
			details[i] = ruleFailure{Rule: rule}
			if i < len(policyErr.Messages) {
				details[i].Message = policyErr.Messages[i]
			}
		}
		writeJSON(w, http.StatusBadRequest, envelope{
			Error:   "Password does not meet requirements",
			Details: details,
		})

	case errors.Is(err, auth.ErrValidation):
		writeBadRequest(w, err.Error())

	case errors.As(err, &lockedErr):
		writeTooManyRequests(w, lockedErr.Remaining.Seconds(), lockedMessage(lockedErr.Remaining))

	case errors.Is(err, auth.ErrRateLimited):
		writeTooManyRequests(w, 60, msgRateLimited) //nolint:mnd // one window

	case errors.Is(err, auth.ErrNoToken):
		writeError(w, http.StatusUnauthorized, msgAuthRequired)

	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)

	case errors.Is(err, auth.ErrUnauthenticated):
		s.logger.Warn("rejected session token",
			"error", err,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
		)
		writeError(w, http.StatusUnauthorized, msgInvalidToken)

	case errors.Is(err, auth.ErrAccountDisabled):
		writeError(w, http.StatusForbidden, msgAccountDisabled)

	case errors.Is(err, auth.ErrTenantMismatch):
		if s.tenantMismatch == config.TenantMismatchNotFound {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		writeError(w, http.StatusForbidden, msgForbidden)

	case errors.Is(err, auth.ErrForbidden):
		msg := msgForbidden
		if err != auth.ErrForbidden { //nolint:errorlint // wrapped variants carry a specific reason
			msg = err.Error()
		}
		writeError(w, http.StatusForbidden, msg)

	case errors.Is(err, auth.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, tenant.ErrChurchNotFound):
		writeError(w, http.StatusNotFound, "Church not found")
	case errors.Is(err, schedule.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "Event not found")

	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, auth.ErrAlreadyInTenant):
		writeError(w, http.StatusConflict, "Account already belongs to a church")

	default:
		reqID := requestIDFrom(r.Context())
		s.logger.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", reqID,
		)
		reporting.CaptureError(r.Context(), err, map[string]string{"request_id": reqID, "path": r.URL.Path})
		writeInternalError(w)
	}
}
