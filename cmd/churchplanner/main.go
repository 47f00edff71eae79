// Church Planner Core - multi-tenant church scheduling service.
//
// This is the main entry point. It serves the HTTP API by default and
// offers a create-superadmin subcommand for bootstrapping an operator
// account from a terminal:
//
//	churchplanner [serve]
//	churchplanner create-superadmin -email ops@example.com
//	churchplanner version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	_ "github.com/moonseer/church-planner-core/migrations"

	"github.com/moonseer/church-planner-core/internal/api"
	"github.com/moonseer/church-planner-core/internal/audit"
	"github.com/moonseer/church-planner-core/internal/auth"
	"github.com/moonseer/church-planner-core/internal/eventsink"
	"github.com/moonseer/church-planner-core/internal/infrastructure/config"
	"github.com/moonseer/church-planner-core/internal/infrastructure/database"
	"github.com/moonseer/church-planner-core/internal/infrastructure/influxdb"
	"github.com/moonseer/church-planner-core/internal/infrastructure/logging"
	"github.com/moonseer/church-planner-core/internal/infrastructure/mqtt"
	"github.com/moonseer/church-planner-core/internal/infrastructure/postgres"
	"github.com/moonseer/church-planner-core/internal/infrastructure/reporting"
	"github.com/moonseer/church-planner-core/internal/schedule"
	"github.com/moonseer/church-planner-core/internal/tenant"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// eventDrainTimeout bounds how long shutdown waits for queued security events.
const eventDrainTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := dispatch(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dispatch selects the subcommand. No subcommand means serve.
func dispatch(ctx context.Context, args []string, out io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return run(ctx)
	case "create-superadmin":
		return createSuperAdmin(ctx, args, terminalPassword, out)
	case "version":
		fmt.Fprintf(out, "churchplanner %s (commit %s, built %s)\n", version, commit, date)
		return nil
	default:
		return fmt.Errorf("unknown command %q (want serve, create-superadmin or version)", cmd)
	}
}

// loadConfig reads .env, then the YAML file named by CHURCHPLANNER_CONFIG.
func loadConfig() (*config.Config, string, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, "", err
	}
	path := getConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// getConfigPath returns the configuration file path.
// Uses CHURCHPLANNER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CHURCHPLANNER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the serve command, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Church Planner Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version, cfg.Environment)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"environment", cfg.Environment,
	)
	if cfg.Security.JWT.UsingDevelopmentSecret {
		log.Warn("using the development token secret; set CHURCHPLANNER_JWT_SECRET before exposing this instance")
	}

	reportingEnabled, err := reporting.Init(cfg.Sentry, cfg.Environment, version)
	if err != nil {
		return fmt.Errorf("initialising error reporting: %w", err)
	}
	if reportingEnabled {
		defer reporting.Flush()
		log.Info("error reporting enabled")
	}

	db, closeDB, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := closeDB(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "driver", cfg.Database.Driver)

	optional := make(map[string]api.HealthChecker)
	auditRepo := audit.NewSQLRepository(db)
	background := auth.Fanout{eventsink.NewAuditSink(auditRepo, log.Logger)}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		background = append(background, eventsink.NewMQTTSink(mqttClient, mqttClient.Topics(), log.Logger))
		optional["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		background = append(background, eventsink.NewInfluxSink(influxClient))
		optional["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Administrators' live stream is fed from the same queue. Stopped after
	// the queue drains so the last events still reach connected clients.
	hub := api.NewHub(cfg.WebSocket, log)
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)
	background = append(background, hub)

	// Registered after the backend defers so queued events drain before
	// the MQTT, InfluxDB and database connections close.
	async := eventsink.NewAsync(background, eventsink.DefaultBufferSize, log.Logger)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), eventDrainTimeout)
		defer cancel()
		if closeErr := async.Close(drainCtx); closeErr != nil {
			log.Warn("security events not fully drained", "error", closeErr, "dropped", async.Dropped())
		}
	}()
	events := auth.Fanout{eventsink.NewLogSink(log.Logger), async}

	stack, err := buildAuth(cfg, db, events, log)
	if err != nil {
		return err
	}

	if _, seedErr := auth.SeedSuperAdmin(ctx, stack.store, cfg.Bootstrap.SuperAdminEmail, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding superadmin: %w", seedErr)
	}

	server, err := api.New(api.Deps{
		Config:        cfg.API,
		Security:      cfg.Security,
		CookieSecure:  cfg.CookieSecure(),
		CookieName:    cfg.Security.Session.CookieName,
		Logger:        log,
		Auth:          stack.service,
		Authenticator: stack.authenticator,
		Churches:      tenant.NewService(tenant.NewSQLRepository(db, time.Now), events),
		Events:        schedule.NewService(schedule.NewSQLRepository(db, time.Now)),
		Audit:         auditRepo,
		WebSocket:     cfg.WebSocket,
		Hub:           hub,
		Database:      db,
		Optional:      optional,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Security event queue
	// 3. Security-event stream hub
	// 4. InfluxDB and MQTT (if enabled)
	// 5. Database

	return nil
}

// authStack is the wired authentication pipeline.
type authStack struct {
	store         *auth.SQLStore
	service       *auth.Service
	authenticator *auth.Authenticator
}

// buildAuth wires the credential store, token service and authenticator
// from configuration.
func buildAuth(cfg *config.Config, db *database.DB, events auth.EventSink, log *logging.Logger) (*authStack, error) {
	store := newStore(cfg, db)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.Security.JWT.Secret,
		TTL:    cfg.TokenTTL(),
		Issuer: cfg.Security.JWT.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	order := make([]auth.TokenSource, len(cfg.Security.Extraction.Order))
	for i, src := range cfg.Security.Extraction.Order {
		order[i] = auth.TokenSource(src)
	}
	extractor, err := auth.NewTokenExtractor(auth.ExtractorConfig{
		Order:      order,
		CookieName: cfg.Security.Session.CookieName,
		QueryParam: cfg.Security.Extraction.QueryParam,
		AllowQuery: cfg.Security.Extraction.AllowQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("creating token extractor: %w", err)
	}

	service, err := auth.NewService(auth.ServiceConfig{
		Store:  store,
		Tokens: tokens,
		Events: events,
		Logger: log.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating auth service: %w", err)
	}

	return &authStack{
		store:         store,
		service:       service,
		authenticator: auth.NewAuthenticator(extractor, tokens, store),
	}, nil
}

// newStore builds the credential store with the configured policies.
func newStore(cfg *config.Config, db *database.DB) *auth.SQLStore {
	pw := cfg.Security.Password
	return auth.NewSQLStore(db, auth.StoreOptions{
		Policy: auth.PasswordPolicy{
			MinLength:     pw.MinLength,
			MaxLength:     auth.DefaultPasswordPolicy().MaxLength,
			RequireUpper:  pw.RequireUpper,
			RequireLower:  pw.RequireLower,
			RequireDigit:  pw.RequireDigit,
			RequireSymbol: pw.RequireSymbol,
		},
		Lockout: auth.LockoutPolicy{
			Threshold: cfg.Security.Lockout.Threshold,
			Duration:  cfg.LockoutDuration(),
		},
	})
}

// openDatabase opens and migrates the configured backend. The returned
// function closes it.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, func() error, error) {
	if cfg.Driver == config.DriverPostgres {
		pool, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: time.Duration(cfg.Postgres.MaxConnLifetime) * time.Second,
			MigrateOnStart:  true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		return pool.DB(), func() error { pool.Close(); return nil }, nil
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, db.Close, nil
}

// passwordReader prompts for a secret without echoing it.
type passwordReader func(prompt string) ([]byte, error)

// terminalPassword reads a password from the controlling terminal.
func terminalPassword(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return nil, errors.New("create-superadmin must be run from an interactive terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return pw, nil
}

// createSuperAdmin implements the create-superadmin command.
func createSuperAdmin(ctx context.Context, args []string, readPassword passwordReader, out io.Writer) error {
	fs := flag.NewFlagSet("create-superadmin", flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "email address of the new superadmin (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("create-superadmin: -email is required")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	first, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	second, err := readPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if string(first) != string(second) {
		return errors.New("passwords do not match")
	}

	db, closeDB, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB() //nolint:errcheck // best-effort close on exit

	acc, err := auth.CreateSuperAdmin(ctx, newStore(cfg, db), *email, string(first))
	if err != nil {
		var policyErr *auth.PolicyError
		if errors.As(err, &policyErr) {
			return fmt.Errorf("password rejected: %s", strings.Join(policyErr.Messages, "; "))
		}
		return fmt.Errorf("creating superadmin: %w", err)
	}

	fmt.Fprintf(out, "created superadmin %s (%s)\n", acc.Email, acc.ID)
	return nil
}
