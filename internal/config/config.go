// Package config loads BarkBook's settings from environment variables.
// Defaults come from struct tags and everything is validated at startup so a
// bad deployment fails before it accepts traffic.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	History  HistoryConfig
	Stripe   StripeConfig
	Notify   NotifyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining in-flight imports.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the chi middleware timeout. Imports carry their own
	// IMPORT_TIMEOUT, so keep this at least as long.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"6m"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	// URL supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ConnectTimeout is the total time spent retrying the initial connection.
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"30s"`

	// AutoMigrate applies the schema on startup.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// ImportConfig holds limits for migration imports.
type ImportConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 10MB).
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxRows caps rows per import.
	MaxRows int `env:"IMPORT_MAX_ROWS" default:"10000"`

	MaxConcurrent int           `env:"IMPORT_MAX_CONCURRENT" default:"4"`
	MaxWaitTime   time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// CallTimeout bounds each datastore lookup or insert.
	CallTimeout time.Duration `env:"IMPORT_CALL_TIMEOUT" default:"10s"`

	// Timeout bounds a whole import.
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"5m"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for the import endpoints.
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables X-API-Key checks on /api routes.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json.
	Format string `env:"LOG_FORMAT" default:"text"`
}

// HistoryConfig controls retention of the import run ledger.
type HistoryConfig struct {
	RetentionDays int           `env:"HISTORY_RETENTION_DAYS" default:"90"`
	CheckInterval time.Duration `env:"HISTORY_CHECK_INTERVAL" default:"24h"`
}

// StripeConfig holds payment webhook settings. Empty disables verification
// and the webhook route answers 500.
type StripeConfig struct {
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// NotifyConfig holds import summary email settings.
type NotifyConfig struct {
	ResendAPIKey string   `env:"RESEND_API_KEY"`
	From         string   `env:"NOTIFY_FROM"`
	To           []string `env:"NOTIFY_TO"`
}

// Enabled reports whether every notification setting is present.
func (c *NotifyConfig) Enabled() bool {
	return c.ResendAPIKey != "" && c.From != "" && len(c.To) > 0
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
