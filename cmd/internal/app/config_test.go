package app

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("log defaults: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.AccessTTL != 30*time.Minute {
		t.Fatalf("AccessTTL=%v", cfg.AccessTTL)
	}
	if cfg.RefreshTTLDefault != 7*24*time.Hour {
		t.Fatalf("RefreshTTLDefault=%v", cfg.RefreshTTLDefault)
	}
	if cfg.RefreshTTLRemember != 30*24*time.Hour {
		t.Fatalf("RefreshTTLRemember=%v", cfg.RefreshTTLRemember)
	}
	if cfg.RefreshTokenBytes != 32 {
		t.Fatalf("RefreshTokenBytes=%d", cfg.RefreshTokenBytes)
	}
	if cfg.PurgeInterval != time.Hour {
		t.Fatalf("PurgeInterval=%v", cfg.PurgeInterval)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("AUTHD_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("AUTHD_ACCESS_TTL", "15m")
	t.Setenv("AUTHD_REFRESH_TTL", "48h")
	t.Setenv("AUTHD_CORS_ALLOWED_ORIGINS", "https://app.example.com,http://127.0.0.1:*")
	t.Setenv("AUTHD_TRUST_PROXY", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HTTPAddr != "127.0.0.1:9000" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("AccessTTL=%v", cfg.AccessTTL)
	}
	if cfg.RefreshTTLDefault != 48*time.Hour {
		t.Fatalf("RefreshTTLDefault=%v", cfg.RefreshTTLDefault)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://127.0.0.1:*" {
		t.Fatalf("CORSAllowedOrigins=%v", cfg.CORSAllowedOrigins)
	}
	if !cfg.TrustProxy {
		t.Fatalf("TrustProxy should be true")
	}
}

func TestLoadConfig_RememberClampedToDefault(t *testing.T) {
	// A remember TTL shorter than the default would invert the policy.
	t.Setenv("AUTHD_REFRESH_TTL", "240h")
	t.Setenv("AUTHD_REFRESH_TTL_REMEMBER", "24h")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RefreshTTLRemember != cfg.RefreshTTLDefault {
		t.Fatalf("remember TTL not clamped: %v < %v", cfg.RefreshTTLRemember, cfg.RefreshTTLDefault)
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	base := Config{TokenSecret: strings.Repeat("s", 32)}

	if err := ValidateSecurityConfig(base); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	short := base
	short.TokenSecret = "too-short"
	if err := ValidateSecurityConfig(short); err == nil {
		t.Fatalf("short token secret accepted")
	}

	hmac := base
	hmac.RequireRefreshHMAC = true
	if err := ValidateSecurityConfig(hmac); err == nil {
		t.Fatalf("missing HMAC key accepted under policy")
	}
	hmac.RefreshHMACKey = strings.Repeat("k", 32)
	if err := ValidateSecurityConfig(hmac); err != nil {
		t.Fatalf("valid HMAC policy rejected: %v", err)
	}
}
