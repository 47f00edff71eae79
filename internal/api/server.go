package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moonseer/church-planner-core/internal/audit"
	"github.com/moonseer/church-planner-core/internal/auth"
	"github.com/moonseer/church-planner-core/internal/infrastructure/config"
	"github.com/moonseer/church-planner-core/internal/infrastructure/logging"
	"github.com/moonseer/church-planner-core/internal/schedule"
	"github.com/moonseer/church-planner-core/internal/tenant"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by every backing service reported on
// /health (database, MQTT, InfluxDB).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	Security      config.SecurityConfig
	CookieSecure  bool
	CookieName    string
	Logger        *logging.Logger
	Auth          *auth.Service
	Authenticator *auth.Authenticator
	Churches      *tenant.Service
	Events        *schedule.Service
	Audit         audit.Repository

	// WebSocket configures the security-event stream.
	WebSocket config.WebSocketConfig
	// Hub, if set, is used for the stream instead of a hub owned by the
	// server. The caller then runs and stops it, and is expected to feed it
	// security events.
	Hub *Hub

	// Database is required; an unhealthy database fails /health with 503.
	Database HealthChecker
	// Optional reports optional backends by name. A failing optional
	// backend is reported as degraded but keeps /health at 200.
	Optional map[string]HealthChecker

	Version string
	Now     func() time.Time
}

// Server is the HTTP API server for Church Planner.
//
// It manages the HTTP listener, routes, middleware, the login rate
// limiter and the security-event stream. The server is created with New() and started with Start().
type Server struct {
	cfg            config.APIConfig
	secCfg         config.SecurityConfig
	cookieSecure   bool
	cookieName     string
	tenantMismatch string
	logger         *logging.Logger
	auth           *auth.Service
	authn          *auth.Authenticator
	churches       *tenant.Service
	events         *schedule.Service
	auditRepo      audit.Repository
	database       HealthChecker
	optional       map[string]HealthChecker
	limiter        *rateLimiter
	hub            *Hub
	ownsHub        bool
	tickets        *ticketStore
	upgrader       *websocket.Upgrader
	version        string
	now            func() time.Time
	server         *http.Server
	cancel         context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Auth == nil || deps.Authenticator == nil {
		return nil, errors.New("auth service and authenticator are required")
	}
	if deps.Churches == nil || deps.Events == nil {
		return nil, errors.New("church and event services are required")
	}
	if deps.Database == nil {
		return nil, errors.New("database health checker is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CookieName == "" {
		deps.CookieName = auth.DefaultCookieName
	}

	s := &Server{
		cfg:            deps.Config,
		secCfg:         deps.Security,
		cookieSecure:   deps.CookieSecure,
		cookieName:     deps.CookieName,
		tenantMismatch: deps.Security.TenantMismatch,
		logger:         deps.Logger,
		auth:           deps.Auth,
		authn:          deps.Authenticator,
		churches:       deps.Churches,
		events:         deps.Events,
		auditRepo:      deps.Audit,
		database:       deps.Database,
		optional:       deps.Optional,
		hub:            deps.Hub,
		tickets:        newTicketStore(deps.Now),
		version:        deps.Version,
		now:            deps.Now,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WebSocket, deps.Logger)
		s.ownsHub = true
	}
	s.upgrader = s.newUpgrader()

	if rl := deps.Security.RateLimit; rl.Enabled && rl.RequestsPerMinute > 0 {
		s.limiter = newRateLimiter(rl.RequestsPerMinute, time.Minute, deps.Now)
	}

	return s, nil
}

// Handler returns the fully wired router. Start uses it for the listener;
// tests drive it directly with httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It launches the rate limiter and stream ticket cleanup loops, the hub
// (when the server owns it) and the HTTP listener in background
// goroutines. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.limiter != nil {
		go s.limiter.cleanupLoop(srvCtx)
	}
	go s.tickets.cleanupLoop(srvCtx)
	if s.ownsHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}

	return nil
}

// Hub returns the hub streaming security events to clients. Events reach
// it only through the sink chain it is added to.
func (s *Server) Hub() *Hub {
	return s.hub
}
