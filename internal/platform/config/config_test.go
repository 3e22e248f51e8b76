package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bursar")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.RateLimitPerMinute != 120 {
		t.Fatalf("expected fallback rate limit, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("expected 3s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateProductionSecret(t *testing.T) {
	cfg := Config{
		DatabaseURL:        "postgres://localhost/bursar",
		JWTSecret:          "short",
		Environment:        "production",
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 10,
		Currency:           "KES",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected short production secret to fail validation")
	}
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	cfg := Config{JWTSecret: "secret", MaxBodyBytes: 4096, RateLimitPerMinute: 10, Currency: "KES"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing DATABASE_URL to fail validation")
	}
}
