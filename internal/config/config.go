// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Fetch    FetchConfig
	Clean    CleanConfig
	Manual   ManualConfig
	Session  SessionConfig
	Activity ActivityConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds the optional activity log database settings.
// When URL is empty the activity log is kept in memory.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// UploadConfig holds dataset upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes, with an optional KB/MB/GB suffix (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"50MB" unit:"bytes"`

	// MaxConcurrent is the maximum number of datasets processed at once (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a processing slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// FetchConfig holds settings for loading datasets from a URL.
type FetchConfig struct {
	// Timeout bounds the whole download (default: 30s)
	Timeout time.Duration `env:"FETCH_TIMEOUT" default:"30s"`

	// MaxSize is the largest response body accepted in bytes, with an optional KB/MB/GB suffix (default: 50MB)
	MaxSize int64 `env:"FETCH_MAX_SIZE" default:"50MB" unit:"bytes"`

	// UserAgent is sent with every fetch request
	UserAgent string `env:"FETCH_USER_AGENT" default:"csvclean/1.0"`

	// AllowPrivate lets URL loads reach loopback, private and link-local
	// addresses such as cloud metadata endpoints (default: false)
	AllowPrivate bool `env:"FETCH_ALLOW_PRIVATE" default:"false"`
}

// CleanConfig holds automatic cleaning settings.
type CleanConfig struct {
	// QuantileMethod selects how Q1/Q3 are computed: linear, empirical, nearest (default: linear)
	QuantileMethod string `env:"CLEAN_QUANTILE_METHOD" default:"linear"`

	// IQRMultiplier scales the interquartile range for outlier bounds (default: 1.5)
	IQRMultiplier float64 `env:"CLEAN_IQR_MULTIPLIER" default:"1.5"`

	// PreviewRows is the number of rows shown in previews (default: 5)
	PreviewRows int `env:"CLEAN_PREVIEW_ROWS" default:"5"`
}

// ManualConfig controls the manual transformation capability.
// Programs run in a restricted expression evaluator with no I/O access.
type ManualConfig struct {
	// Enabled turns the manual transformation mode on or off (default: true)
	Enabled bool `env:"MANUAL_MODE_ENABLED" default:"true"`

	// MaxStatements caps the number of statements per program (default: 100)
	MaxStatements int `env:"MANUAL_MAX_STATEMENTS" default:"100"`

	// CostLimit caps the evaluation cost of a single expression (default: 100000)
	CostLimit uint64 `env:"MANUAL_COST_LIMIT" default:"100000"`
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	// TTL is how long an idle session is kept (default: 1h)
	TTL time.Duration `env:"SESSION_TTL" default:"1h"`

	// MaxSessions caps the number of live sessions; the oldest is evicted (default: 500)
	MaxSessions int `env:"SESSION_MAX" default:"500"`

	// SweepInterval is how often expired sessions are removed (default: 5m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"5m"`

	// CookieSecure sets the Secure flag on the session cookie (default: false)
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" default:"false"`
}

// ActivityConfig holds activity log settings.
type ActivityConfig struct {
	// RetentionDays is how long activity entries are kept (default: 30)
	RetentionDays int `env:"ACTIVITY_RETENTION_DAYS" default:"30"`

	// MemoryCapacity bounds the in-memory log when no database is configured (default: 1000)
	MemoryCapacity int `env:"ACTIVITY_MEMORY_CAPACITY" default:"1000"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for load and clean endpoints (default: 20)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey guards the /api routes with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
