package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string `env:"AUTHD_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"AUTHD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"AUTHD_LOG_FORMAT" envDefault:"json"`

	ReadHeaderTimeout time.Duration `env:"AUTHD_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"AUTHD_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"AUTHD_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"AUTHD_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"AUTHD_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`
	MaxBodyBytes      int64         `env:"AUTHD_HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
	TrustProxy        bool          `env:"AUTHD_TRUST_PROXY" envDefault:"false"`

	// CORS allowlist; an entry ending in ":*" allows any port on the host.
	CORSAllowedOrigins   []string `env:"AUTHD_CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool     `env:"AUTHD_CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	CORSMaxAgeSeconds    int      `env:"AUTHD_CORS_MAX_AGE_SECONDS" envDefault:"600"`

	// DatabaseURL selects the Postgres store; when empty the server runs on
	// an in-memory store (dev mode only, nothing survives a restart).
	DatabaseURL string `env:"AUTHD_DATABASE_URL"`
	DBMaxConns  int32  `env:"AUTHD_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"AUTHD_DB_MIN_CONNS" envDefault:"0"`

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool `env:"AUTHD_READINESS_REQUIRE_DB" envDefault:"false"`

	// Token material.
	TokenSecret string        `env:"AUTHD_TOKEN_SECRET"`
	TokenIssuer string        `env:"AUTHD_TOKEN_ISSUER" envDefault:"authd"`
	AccessTTL   time.Duration `env:"AUTHD_ACCESS_TTL" envDefault:"30m"`
	ClockSkew   time.Duration `env:"AUTHD_CLOCK_SKEW" envDefault:"30s"`

	// Refresh session policy.
	RefreshTTLDefault  time.Duration `env:"AUTHD_REFRESH_TTL" envDefault:"168h"`
	RefreshTTLRemember time.Duration `env:"AUTHD_REFRESH_TTL_REMEMBER" envDefault:"720h"`
	RefreshTokenBytes  int           `env:"AUTHD_REFRESH_TOKEN_BYTES" envDefault:"32"`

	// RefreshHMACKey keys the refresh-token digest; when empty digests fall
	// back to plain SHA-256. RequireRefreshHMAC makes the fallback a startup
	// failure.
	RefreshHMACKey     string `env:"AUTHD_REFRESH_HMAC_KEY"`
	RequireRefreshHMAC bool   `env:"AUTHD_REQUIRE_REFRESH_HMAC" envDefault:"false"`

	// PurgeInterval drives the background sweep of expired session rows.
	// Zero disables the sweep.
	PurgeInterval time.Duration `env:"AUTHD_SESSION_PURGE_INTERVAL" envDefault:"1h"`
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	// Clamp to keep the server bootable under partial misconfiguration;
	// secret validation stays strict (see ValidateSecurityConfig).
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.MaxHeaderBytes <= 0 {
		cfg.MaxHeaderBytes = 1 << 20
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 30 * time.Minute
	}
	if cfg.ClockSkew < 0 {
		cfg.ClockSkew = 0
	}
	if cfg.RefreshTTLDefault <= 0 {
		cfg.RefreshTTLDefault = 7 * 24 * time.Hour
	}
	if cfg.RefreshTTLRemember < cfg.RefreshTTLDefault {
		cfg.RefreshTTLRemember = cfg.RefreshTTLDefault
	}
	if cfg.RefreshTokenBytes <= 0 {
		cfg.RefreshTokenBytes = 32
	}

	return cfg, nil
}

// ValidateSecurityConfig enforces the startup security policy.
//
// Fail-fast: silently booting with weak or missing token material would turn
// every issued session into a liability.
func ValidateSecurityConfig(cfg Config) error {
	if len(cfg.TokenSecret) < 32 {
		return errors.New("security policy: AUTHD_TOKEN_SECRET must be at least 32 bytes")
	}
	if cfg.RequireRefreshHMAC && len(cfg.RefreshHMACKey) < 32 {
		return errors.New("security policy: AUTHD_REQUIRE_REFRESH_HMAC=true but AUTHD_REFRESH_HMAC_KEY is missing or shorter than 32 bytes")
	}
	return nil
}
