// Package config loads process configuration from CASEDOCK_* environment
// variables and manages the optional fallback-credentials file that backs
// ambient credential resolution.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joeshaw/envdecode"
)

// Env is the process configuration. Every field can be set through the
// environment; defaults are provided via struct tags. Command-line flags may
// override individual fields after Load.
type Env struct {
	// Transport selects how the server speaks MCP. ENV: CASEDOCK_TRANSPORT
	Transport string `env:"CASEDOCK_TRANSPORT,default=stdio"`
	// ListenAddr is the HTTP bind address. ENV: CASEDOCK_LISTEN_ADDR
	ListenAddr string `env:"CASEDOCK_LISTEN_ADDR,default=:8080"`
	// PublicBaseURL is the externally reachable URL of the HTTP endpoint,
	// used as the default token audience. ENV: CASEDOCK_PUBLIC_BASE_URL
	PublicBaseURL string `env:"CASEDOCK_PUBLIC_BASE_URL"`

	// LogLevel is one of debug, info, warn, error. ENV: CASEDOCK_LOG_LEVEL
	LogLevel string `env:"CASEDOCK_LOG_LEVEL,default=info"`
	// LogFormat is json or text. ENV: CASEDOCK_LOG_FORMAT
	LogFormat string `env:"CASEDOCK_LOG_FORMAT,default=json"`

	// SessionTTL is the default lifetime of cached sessions.
	// ENV: CASEDOCK_SESSION_TTL
	SessionTTL time.Duration `env:"CASEDOCK_SESSION_TTL,default=2h"`
	// SweepInterval is how often the store evicts expired sessions.
	// ENV: CASEDOCK_SWEEP_INTERVAL
	SweepInterval time.Duration `env:"CASEDOCK_SWEEP_INTERVAL,default=15m"`
	// DefaultAPIVersion applies to sessions whose credentials omit one.
	// ENV: CASEDOCK_DEFAULT_API_VERSION
	DefaultAPIVersion string `env:"CASEDOCK_DEFAULT_API_VERSION,default=v2"`

	// AuthIssuer enables inbound bearer auth on the HTTP transport when
	// set. ENV: CASEDOCK_AUTH_ISSUER
	AuthIssuer string `env:"CASEDOCK_AUTH_ISSUER"`
	// AuthAudiences lists accepted token audiences, semicolon separated.
	// Defaults to PublicBaseURL when empty. ENV: CASEDOCK_AUTH_AUDIENCES
	AuthAudiences []string `env:"CASEDOCK_AUTH_AUDIENCES"`
	// AuthJWKSURL skips OIDC discovery and fetches keys from a fixed JWKS
	// endpoint. ENV: CASEDOCK_AUTH_JWKS_URL
	AuthJWKSURL string `env:"CASEDOCK_AUTH_JWKS_URL"`
	// AuthScopes lists scopes every token must carry, semicolon separated.
	// ENV: CASEDOCK_AUTH_SCOPES
	AuthScopes []string `env:"CASEDOCK_AUTH_SCOPES"`

	// FallbackCredentialsFile points at a YAML file holding ambient
	// Casedock credentials. ENV: CASEDOCK_FALLBACK_CREDENTIALS_FILE
	FallbackCredentialsFile string `env:"CASEDOCK_FALLBACK_CREDENTIALS_FILE"`
}

// Load populates an Env from the environment.
func Load() (Env, error) {
	var e Env
	if err := envdecode.Decode(&e); err != nil {
		return Env{}, fmt.Errorf("config: %w", err)
	}
	return e, nil
}

// Validate checks enum fields. Call after any flag overrides are applied.
func (e Env) Validate() error {
	switch e.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("config: transport must be stdio or http, got %q", e.Transport)
	}
	switch e.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: log format must be json or text, got %q", e.LogFormat)
	}
	if _, err := e.SlogLevel(); err != nil {
		return err
	}
	if e.SessionTTL <= 0 {
		return fmt.Errorf("config: session TTL must be positive, got %s", e.SessionTTL)
	}
	if e.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep interval must be positive, got %s", e.SweepInterval)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (e Env) SlogLevel() (slog.Level, error) {
	switch e.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: log level must be debug, info, warn, or error, got %q", e.LogLevel)
	}
}
