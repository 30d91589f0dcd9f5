// Package config provides centralized configuration management for the
// application. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server  ServerConfig
	Upload  UploadConfig
	Session SessionConfig
	Chart   ChartConfig
	Report  ReportConfig
	Assets  AssetsConfig
	Rate    RateLimitConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers may be trusted. Empty means no
	// proxy headers are trusted and RemoteAddr is used as-is.
	TrustedProxies string `env:"SERVER_TRUSTED_PROXIES" default:""`
}

// UploadConfig holds file ingestion settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of files parsed in parallel (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a parse slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// SessionConfig holds per-file session lifecycle settings.
type SessionConfig struct {
	// TTL is how long an idle session is kept before expiry (default: 1h)
	TTL time.Duration `env:"SESSION_TTL" default:"1h"`

	// CleanupInterval is how often expired sessions are collected (default: 5m)
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" default:"5m"`

	// MaxSessions is the maximum number of live sessions (default: 100)
	MaxSessions int `env:"SESSION_MAX" default:"100"`
}

// ChartConfig holds chart rendering settings.
type ChartConfig struct {
	// Width is the rendered chart width in pixels (default: 1024)
	Width int `env:"CHART_WIDTH" default:"1024"`

	// Height is the rendered chart height in pixels (default: 512)
	Height int `env:"CHART_HEIGHT" default:"512"`
}

// ReportConfig holds report generation settings.
type ReportConfig struct {
	// TopCategories is how many frequent values to list per text column (default: 5)
	TopCategories int `env:"REPORT_TOP_CATEGORIES" default:"5"`

	// MaxCorrelationColumns caps the correlation matrix size (default: 12)
	MaxCorrelationColumns int `env:"REPORT_MAX_CORRELATION_COLUMNS" default:"12"`
}

// AssetsConfig holds static asset paths.
type AssetsConfig struct {
	// StylesheetPath is the external stylesheet loaded once at startup and
	// injected into the dashboard page. A missing file is a startup-fatal
	// configuration error (default: web/assets/style.css)
	StylesheetPath string `env:"ASSETS_STYLESHEET" default:"web/assets/style.css"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
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

// TrustedProxyList splits TrustedProxies into individual CIDR entries.
func (c *ServerConfig) TrustedProxyList() []string {
	if strings.TrimSpace(c.TrustedProxies) == "" {
		return nil
	}
	parts := strings.Split(c.TrustedProxies, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
