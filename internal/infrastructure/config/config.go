package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Deployment profiles.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Tenant mismatch policies.
const (
	TenantMismatchForbidden = "forbidden"
	TenantMismatchNotFound  = "not_found"
)

// DevelopmentJWTSecret signs tokens when no secret is configured outside
// production. It is rejected outright in a production profile.
const DevelopmentJWTSecret = "churchplanner-development-signing-secret-not-for-production"

const minJWTSecretLength = 32

// Config is the root configuration structure for Church Planner.
// All configuration is loaded from YAML and can be overridden by environment variables.
// It is built once at startup and passed by value or pointer to constructors; nothing
// reads the environment after Load returns.
type Config struct {
	Environment string          `yaml:"environment"`
	Database    DatabaseConfig  `yaml:"database"`
	MQTT        MQTTConfig      `yaml:"mqtt"`
	API         APIConfig       `yaml:"api"`
	WebSocket   WebSocketConfig `yaml:"websocket"`
	InfluxDB    InfluxDBConfig  `yaml:"influxdb"`
	Logging     LoggingConfig   `yaml:"logging"`
	Sentry      SentryConfig    `yaml:"sentry"`
	Bootstrap   BootstrapConfig `yaml:"bootstrap"`
	Security    SecurityConfig  `yaml:"security"`
}

// DatabaseConfig selects the storage backend and its settings.
type DatabaseConfig struct {
	Driver      string         `yaml:"driver"`
	Path        string         `yaml:"path"`
	WALMode     bool           `yaml:"wal_mode"`
	BusyTimeout int            `yaml:"busy_timeout"`
	Postgres    PostgresConfig `yaml:"postgres"`
}

// PostgresConfig contains connection pool settings for the postgres driver.
type PostgresConfig struct {
	DSN             string `yaml:"dsn"`
	MaxConns        int32  `yaml:"max_conns"`
	MinConns        int32  `yaml:"min_conns"`
	MaxConnLifetime int    `yaml:"max_conn_lifetime"` // seconds
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the live security-event stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"` // bytes accepted from a client
	PingInterval   int `yaml:"ping_interval"`    // seconds
	PongTimeout    int `yaml:"pong_timeout"`     // seconds
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SentryConfig contains error reporting settings. An empty DSN disables reporting.
type SentryConfig struct {
	DSN        string  `yaml:"dsn"`
	SampleRate float64 `yaml:"sample_rate"`
}

// BootstrapConfig seeds the first superadmin on an empty database.
type BootstrapConfig struct {
	SuperAdminEmail string `yaml:"superadmin_email"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT            JWTConfig            `yaml:"jwt"`
	Session        SessionConfig        `yaml:"session"`
	Extraction     ExtractionConfig     `yaml:"extraction"`
	Lockout        LockoutConfig        `yaml:"lockout"`
	Password       PasswordPolicyConfig `yaml:"password"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	TenantMismatch string               `yaml:"tenant_mismatch"`
}

// JWTConfig contains session token settings.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	TokenTTL int    `yaml:"token_ttl"` // minutes

	// UsingDevelopmentSecret is set by Load when the development fallback was applied.
	UsingDevelopmentSecret bool `yaml:"-"`
}

// SessionConfig controls the session cookie written on login.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	Domain     string `yaml:"domain"`
	// Secure defaults to true in production and false otherwise.
	Secure *bool `yaml:"secure"`
}

// ExtractionConfig controls where session tokens are read from.
type ExtractionConfig struct {
	Order      []string `yaml:"order"`
	QueryParam string   `yaml:"query_param"`
	AllowQuery bool     `yaml:"allow_query"`
}

// LockoutConfig contains brute-force lockout settings.
type LockoutConfig struct {
	Threshold int `yaml:"threshold"`
	Duration  int `yaml:"duration"` // minutes
}

// PasswordPolicyConfig toggles password rules.
type PasswordPolicyConfig struct {
	MinLength     int  `yaml:"min_length"`
	RequireUpper  bool `yaml:"require_upper"`
	RequireLower  bool `yaml:"require_lower"`
	RequireDigit  bool `yaml:"require_digit"`
	RequireSymbol bool `yaml:"require_symbol"`
}

// RateLimitConfig contains login rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. Profile defaults (development fallbacks, production hardening)
//
// Environment variables follow the pattern: CHURCHPLANNER_SECTION_KEY
// For example: CHURCHPLANNER_DATABASE_PATH, CHURCHPLANNER_JWT_SECRET
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	applyProfileDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Database: DatabaseConfig{
			Driver:      DriverSQLite,
			Path:        "./data/churchplanner.db",
			WALMode:     true,
			BusyTimeout: 5,
			Postgres: PostgresConfig{
				MaxConns:        10,
				MinConns:        1,
				MaxConnLifetime: 3600,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "churchplanner-core",
			},
			QoS:         1,
			TopicPrefix: "churchplanner",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Sentry: SentryConfig{
			SampleRate: 1.0,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer: "churchplanner",
			},
			Session: SessionConfig{
				CookieName: "token",
			},
			Extraction: ExtractionConfig{
				Order:      []string{"header", "cookie", "query"},
				QueryParam: "token",
			},
			Lockout: LockoutConfig{
				Threshold: 5,
				Duration:  15,
			},
			Password: PasswordPolicyConfig{
				MinLength:     8,
				RequireUpper:  true,
				RequireLower:  true,
				RequireDigit:  true,
				RequireSymbol: true,
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 10,
			},
			TenantMismatch: TenantMismatchForbidden,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CHURCHPLANNER_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CHURCHPLANNER_ENV"); v != "" {
		cfg.Environment = v
	}

	// Database
	if v := os.Getenv("CHURCHPLANNER_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("CHURCHPLANNER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CHURCHPLANNER_DATABASE_DSN"); v != "" {
		cfg.Database.Postgres.DSN = v
	}

	// MQTT
	if v := os.Getenv("CHURCHPLANNER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CHURCHPLANNER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CHURCHPLANNER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("CHURCHPLANNER_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CHURCHPLANNER_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHURCHPLANNER_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("CHURCHPLANNER_API_CORS_ORIGINS"); v != "" {
		var origins []string
		for o := range strings.SplitSeq(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.API.CORS.AllowedOrigins = origins
	}

	// InfluxDB
	if v := os.Getenv("CHURCHPLANNER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Sentry
	if v := os.Getenv("CHURCHPLANNER_SENTRY_DSN"); v != "" {
		cfg.Sentry.DSN = v
	}

	// Bootstrap
	if v := os.Getenv("CHURCHPLANNER_BOOTSTRAP_EMAIL"); v != "" {
		cfg.Bootstrap.SuperAdminEmail = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("CHURCHPLANNER_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("CHURCHPLANNER_TOKEN_TTL"); v != "" {
		ttl, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHURCHPLANNER_TOKEN_TTL: %w", err)
		}
		cfg.Security.JWT.TokenTTL = ttl
	}
	if v := os.Getenv("CHURCHPLANNER_LOCKOUT_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHURCHPLANNER_LOCKOUT_THRESHOLD: %w", err)
		}
		cfg.Security.Lockout.Threshold = n
	}
	if v := os.Getenv("CHURCHPLANNER_LOCKOUT_DURATION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHURCHPLANNER_LOCKOUT_DURATION: %w", err)
		}
		cfg.Security.Lockout.Duration = n
	}
	return nil
}

// applyProfileDefaults fills values whose default depends on the deployment profile.
// Production never receives a fallback secret; Validate reports the gap instead.
func applyProfileDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = EnvDevelopment
	}

	if cfg.Security.JWT.TokenTTL == 0 {
		if cfg.IsProduction() {
			cfg.Security.JWT.TokenTTL = 15
		} else {
			cfg.Security.JWT.TokenTTL = 1440
		}
	}

	if cfg.Security.JWT.Secret == "" && !cfg.IsProduction() {
		cfg.Security.JWT.Secret = DevelopmentJWTSecret
		cfg.Security.JWT.UsingDevelopmentSecret = true
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Environment != "" && c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		errs = append(errs, "environment must be development or production")
	}

	// Database validation
	switch c.Database.Driver {
	case DriverSQLite, "":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required")
		}
	case DriverPostgres:
		if c.Database.Postgres.DSN == "" {
			errs = append(errs, "database.postgres.dsn is required for the postgres driver")
		}
	default:
		errs = append(errs, "database.driver must be sqlite or postgres")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// WebSocket validation
	if c.WebSocket.MaxMessageSize < 1 || c.WebSocket.PingInterval < 1 || c.WebSocket.PongTimeout < 1 {
		errs = append(errs, "websocket.max_message_size, ping_interval and pong_timeout must be positive")
	}

	errs = append(errs, c.validateSecurity()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateSecurity checks token, cookie, CORS and lockout settings. A
// production profile refuses to start with anything that would let tokens
// be forged, sessions leak over plain HTTP or any origin make credentialed
// requests.
func (c *Config) validateSecurity() []string {
	var errs []string
	sec := c.Security

	switch {
	case sec.JWT.Secret == "":
		errs = append(errs, "security.jwt.secret is required (set CHURCHPLANNER_JWT_SECRET environment variable)")
	case len(sec.JWT.Secret) < minJWTSecretLength:
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	case c.IsProduction() && sec.JWT.Secret == DevelopmentJWTSecret:
		errs = append(errs, "security.jwt.secret must not be the development secret in production")
	}

	if sec.JWT.TokenTTL < 0 {
		errs = append(errs, "security.jwt.token_ttl must not be negative")
	}

	if c.IsProduction() && !c.CookieSecure() {
		errs = append(errs, "security.session.secure cannot be disabled in production")
	}

	if c.IsProduction() {
		origins := c.API.CORS.AllowedOrigins
		if len(origins) == 0 || slices.Contains(origins, "*") {
			errs = append(errs, "api.cors.allowed_origins must list explicit origins in production (set CHURCHPLANNER_API_CORS_ORIGINS)")
		}
	}

	if sec.Lockout.Threshold < 1 {
		errs = append(errs, "security.lockout.threshold must be at least 1")
	}
	if sec.Lockout.Duration < 1 {
		errs = append(errs, "security.lockout.duration must be at least 1 minute")
	}

	if sec.Password.MinLength < 1 {
		errs = append(errs, "security.password.min_length must be at least 1")
	}

	for _, src := range sec.Extraction.Order {
		if !slices.Contains([]string{"header", "cookie", "query"}, src) {
			errs = append(errs, fmt.Sprintf("security.extraction.order: unknown source %q", src))
		}
	}

	switch sec.TenantMismatch {
	case "", TenantMismatchForbidden, TenantMismatchNotFound:
	default:
		errs = append(errs, "security.tenant_mismatch must be forbidden or not_found")
	}

	return errs
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// CookieSecure resolves the session cookie Secure flag for the active profile.
func (c *Config) CookieSecure() bool {
	if c.Security.Session.Secure != nil {
		return *c.Security.Session.Secure
	}
	return c.IsProduction()
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// TokenTTL returns the session token lifetime as a Duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Minute
}

// LockoutDuration returns the lock window as a Duration.
func (c *Config) LockoutDuration() time.Duration {
	return time.Duration(c.Security.Lockout.Duration) * time.Minute
}
