package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moonseer/church-planner-core/internal/auth"
	"github.com/moonseer/church-planner-core/internal/infrastructure/reporting"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// ctxKeyRequestID is the context key for the request ID.
	ctxKeyRequestID contextKey = "request_id"
)

// maxRequestIDLength bounds client-supplied request IDs.
const maxRequestIDLength = 64

// requestIDMiddleware tags each request with an ID. A client-supplied
// X-Request-ID is kept when it is short enough; otherwise a UUID is used.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDFrom returns the request ID stored by requestIDMiddleware.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string) //nolint:errcheck // absent means ""
	return id
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
// Query strings are not logged because they may carry a token.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFrom(r.Context()),
		)
	})
}

// recoveryMiddleware catches panics in handlers, reports them and returns a 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rec)
				}
				stack := debug.Stack()
				reqID := requestIDFrom(r.Context())
				s.logger.Error("panic recovered in HTTP handler",
					"error", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", reqID,
					"stack", string(stack),
				)
				reporting.CapturePanic(r.Context(), rec, stack, map[string]string{"request_id": reqID, "path": r.URL.Path})
				writeInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles Cross-Origin Resource Sharing headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allow, credentials := s.corsOrigin(origin); allow != "" {
			w.Header().Set("Access-Control-Allow-Origin", allow)
			if credentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", joinOrDefault(s.cfg.CORS.AllowedMethods, "GET, POST, PUT, PATCH, DELETE, OPTIONS"))
			w.Header().Set("Access-Control-Allow-Headers", joinOrDefault(s.cfg.CORS.AllowedHeaders, "Authorization, Content-Type, X-Request-ID"))
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// bodySizeLimitMiddleware limits the size of incoming request bodies.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the caller and attaches its identity to the
// request context. It is the only place authentication failures become
// HTTP responses.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.authn.Authenticate(r.Context(), r)
		if err != nil {
			s.writeAuthError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// requireRole admits callers whose live role is in roles. The account is
// re-read so a downgrade or deactivation applies immediately, and the
// refreshed identity replaces the one from authMiddleware.
func (s *Server) requireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				s.writeAuthError(w, r, auth.ErrNoToken)
				return
			}

			live, err := s.authn.Current(r.Context(), id.AccountID)
			if err != nil {
				s.writeAuthError(w, r, err)
				return
			}
			if !slices.Contains(roles, live.Role) {
				s.logger.Warn("role check failed",
					"account_id", live.AccountID,
					"role", live.Role,
					"path", r.URL.Path,
					"request_id", requestIDFrom(r.Context()),
				)
				s.writeAuthError(w, r, auth.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), live)))
		})
	}
}

// requirePermission is requireRole over every role granted perm.
func (s *Server) requirePermission(perm auth.Permission) func(http.Handler) http.Handler {
	return s.requireRole(auth.RolesWith(perm)...)
}

// loginRateLimitMiddleware caps login attempts per client IP.
func (s *Server) loginRateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientIP(r)
		if ok, retry := s.limiter.allow(ip); !ok {
			s.logger.Warn("login rate limit exceeded",
				"remote_addr", ip,
				"request_id", requestIDFrom(r.Context()),
			)
			writeTooManyRequests(w, retry.Seconds(), msgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// identity returns the caller attached by authMiddleware. Routes behind
// authMiddleware always have one.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context()) //nolint:errcheck // zero identity has no permissions
	return id
}

// requestMeta captures the caller details recorded on security events.
func requestMeta(r *http.Request) auth.RequestMeta {
	meta := auth.RequestMeta{RemoteAddr: clientIP(r)}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		meta.ActorID = id.AccountID
	}
	return meta
}

// clientIP returns the host part of RemoteAddr. Forwarding headers are
// not trusted; a proxy in front must rewrite RemoteAddr itself.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// corsOrigin returns the Access-Control-Allow-Origin value for origin and
// whether credentials may accompany it.
//
// Only an origin named in the allow-list is reflected with credentials. An
// empty list or "*" (development) answers with the wildcard, which browsers
// never combine with cookies.
func (s *Server) corsOrigin(origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	allowed := s.cfg.CORS.AllowedOrigins
	if slices.Contains(allowed, origin) {
		return origin, true
	}
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return "*", false
	}
	return "", false
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack hands the connection to the security-event stream.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// joinOrDefault joins a string slice with ", " or returns the default if empty.
func joinOrDefault(values []string, defaultVal string) string {
	if len(values) == 0 {
		return defaultVal
	}
	return strings.Join(values, ", ")
}
