// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/api and cmd/birthdayctl.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Outbound mail
	SMTPHost     string
	SMTPPort     int
	SMTPEmail    string
	SMTPPassword string
	SMTPFrom     string
	SMTPTimeout  time.Duration

	// Scheduler
	FireHour       int
	FireMinute     int
	FireSecond     int
	PollInterval   time.Duration
	RecoveryWindow time.Duration
	EventTypes     []string

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		dbURL = composeDatabaseURL()
	}
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or DB_HOST/DB_USER/DB_DATABASE must be set")
	}

	hour := envInt("HOUR_SEND", 9)
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("HOUR_SEND must be 0-23, got %d", hour)
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 3000)),
		Environment: envOr("ENVIRONMENT", "development"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		SMTPHost:     envOr("SMTP_HOST", ""),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPEmail:    envOr("SMTP_EMAIL", ""),
		SMTPPassword: envOr("SMTP_PASSWORD", ""),
		SMTPFrom:     envOr("SMTP_FROM", envOr("SMTP_EMAIL", "")),
		SMTPTimeout:  time.Duration(envInt("SMTP_TIMEOUT_SECONDS", 15)) * time.Second,

		FireHour:       hour,
		FireMinute:     envInt("SEND_MINUTE", 0),
		FireSecond:     envInt("SEND_SECOND", 0),
		PollInterval:   time.Duration(envInt("POLL_INTERVAL_SECONDS", 60)) * time.Second,
		RecoveryWindow: time.Duration(envInt("RECOVERY_WINDOW_HOURS", 48)) * time.Hour,
		EventTypes:     envList("EVENT_TYPES", []string{"birthday"}),

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// composeDatabaseURL builds a Postgres URL from the discrete DB_* variables
// the deployment environment supplies.
func composeDatabaseURL() string {
	host := envOr("DB_HOST", "")
	user := envOr("DB_USER", "")
	name := envOr("DB_DATABASE", "")
	if host == "" || user == "" || name == "" {
		return ""
	}
	port := envInt("DB_PORT", 5432)
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, envOr("DB_PASSWORD", "")),
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + name,
	}
	return u.String()
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
