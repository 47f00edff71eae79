package api

import (
	"net/http"
	"time"

	"github.com/moonseer/church-planner-core/internal/auth"
)

// registerRequest is the body of POST /auth/register.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request input, never logged
	Name     string `json:"name"`
}

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request input, never logged
}

// loginResponse adds the session token to the success envelope.
type loginResponse struct {
	Success   bool          `json:"success"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Data      *auth.Account `json:"data"`
}

// changePasswordRequest is the body of POST /auth/password.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"` //nolint:gosec // request input, never logged
}

// meResponse is the caller's account plus the permissions of its role.
type meResponse struct {
	*auth.Account
	Permissions []auth.Permission `json:"permissions"`
}

// handleRegister creates a self-service user account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	acc, err := s.auth.Register(r.Context(), auth.NewAccount{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}, requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, acc)
}

// handleLogin verifies credentials, sets the session cookie and returns
// the token for header-based clients.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	res, err := s.auth.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	http.SetCookie(w, s.sessionCookie(res.Token.Value, res.Token.ExpiresAt))
	writeJSON(w, http.StatusOK, loginResponse{
		Success:   true,
		Token:     res.Token.Value,
		ExpiresAt: res.Token.ExpiresAt,
		Data:      res.Account,
	})
}

// handleLogout expires the session cookie. Tokens are stateless, so a
// header-based client simply discards its copy.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	c := s.sessionCookie("", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
	writeData(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// handleMe returns the authenticated account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	acc, err := s.auth.Store().FindByID(r.Context(), id.AccountID)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	perms := auth.PermissionsForRole(acc.Role)
	if perms == nil {
		perms = []auth.Permission{}
	}
	writeData(w, http.StatusOK, meResponse{Account: acc, Permissions: perms})
}

// handleChangePassword replaces the caller's password.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeBadRequest(w, "current_password and new_password are required")
		return
	}

	err := s.auth.ChangePassword(r.Context(), identity(r).AccountID, req.CurrentPassword, req.NewPassword, requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"message": "password changed"})
}

// sessionCookie builds the session cookie carrying value until expires.
func (s *Server) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		Domain:   s.secCfg.Session.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
