package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Addr               string
	Environment        string
	DatabaseURL        string
	JWTSecret          string
	RunMigrations      bool
	PayslipDir         string
	SchoolName         string
	Currency           string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	LogLevel           string
	LogFormat          string
	MetricsEnabled     bool
	ShutdownTimeout    time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}
	return fromKoanf(k), nil
}

func fromKoanf(k *koanf.Koanf) Config {
	return Config{
		Addr:               getString(k, "APP_ADDR", ":8080"),
		Environment:        getString(k, "APP_ENV", "development"),
		DatabaseURL:        getString(k, "DATABASE_URL", ""),
		JWTSecret:          getString(k, "JWT_SECRET", ""),
		RunMigrations:      getBool(k, "RUN_MIGRATIONS", true),
		PayslipDir:         getString(k, "PAYSLIP_DIR", "storage/payslips"),
		SchoolName:         getString(k, "SCHOOL_NAME", "School"),
		Currency:           getString(k, "CURRENCY", "KES"),
		MaxBodyBytes:       int64(getInt(k, "MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute: getInt(k, "RATE_LIMIT_PER_MINUTE", 120),
		LogLevel:           getString(k, "LOG_LEVEL", "info"),
		LogFormat:          getString(k, "LOG_FORMAT", "json"),
		MetricsEnabled:     getBool(k, "METRICS_ENABLED", true),
		ShutdownTimeout:    getDuration(k, "SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getString(k *koanf.Koanf, key, fallback string) string {
	if value := strings.TrimSpace(k.String(key)); value != "" {
		return value
	}
	return fallback
}

func getBool(k *koanf.Koanf, key string, fallback bool) bool {
	value := strings.TrimSpace(k.String(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(k *koanf.Koanf, key string, fallback int) int {
	value := strings.TrimSpace(k.String(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(k *koanf.Koanf, key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(k.String(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Environment == "production" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be a three-letter code")
	}
	return nil
}
