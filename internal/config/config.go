// Package config loads moderator settings from the environment. A .env file
// in the working directory is honoured by the binaries before Load is called.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting the moderation service reads at startup.
type Config struct {
	HTTPAddr    string   // LISTEN_ADDR
	CORSOrigins []string // CORS_ALLOWED_ORIGINS, comma separated

	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT: json | console

	RedisAddr     string // REDIS_ADDR
	RedisPassword string // REDIS_PASSWORD
	RedisDB       int    // REDIS_DB

	NATSURL   string // NATS_URL
	NATSQueue string // NATS_QUEUE

	AuditDriver string // AUDIT_DRIVER: postgres | sqlite
	AuditDSN    string // DATABASE_URL; empty disables the audit log

	VerdictCacheTTL time.Duration // VERDICT_CACHE_TTL; 0 disables caching

	ListingChecksPerMinute int // LISTING_CHECKS_PER_MINUTE; 0 disables limiting
	MessageChecksPerMinute int // MESSAGE_CHECKS_PER_MINUTE; 0 disables limiting
}

// Default returns the settings used when nothing is set in the environment.
func Default() *Config {
	return &Config{
		HTTPAddr:               ":8080",
		CORSOrigins:            []string{"*"},
		LogLevel:               "info",
		LogFormat:              "json",
		RedisAddr:              "localhost:6379",
		NATSURL:                "nats://localhost:4222",
		NATSQueue:              "moderator",
		AuditDriver:            "postgres",
		VerdictCacheTTL:        10 * time.Minute,
		ListingChecksPerMinute: 30,
		MessageChecksPerMinute: 120,
	}
}

// Load reads the environment on top of Default and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	cfg.HTTPAddr = getEnv("LISTEN_ADDR", cfg.HTTPAddr)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSQueue = getEnv("NATS_QUEUE", cfg.NATSQueue)
	cfg.AuditDriver = getEnv("AUDIT_DRIVER", cfg.AuditDriver)
	cfg.AuditDSN = getEnv("DATABASE_URL", cfg.AuditDSN)

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return nil, err
	}
	if cfg.VerdictCacheTTL, err = getEnvDuration("VERDICT_CACHE_TTL", cfg.VerdictCacheTTL); err != nil {
		return nil, err
	}
	if cfg.ListingChecksPerMinute, err = getEnvInt("LISTING_CHECKS_PER_MINUTE", cfg.ListingChecksPerMinute); err != nil {
		return nil, err
	}
	if cfg.MessageChecksPerMinute, err = getEnvInt("MESSAGE_CHECKS_PER_MINUTE", cfg.MessageChecksPerMinute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted away.
func (c *Config) Validate() error {
	switch c.AuditDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: AUDIT_DRIVER must be postgres or sqlite, got %q", c.AuditDriver)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("config: LISTEN_ADDR must not be empty")
	}
	if c.VerdictCacheTTL < 0 {
		return fmt.Errorf("config: VERDICT_CACHE_TTL must not be negative")
	}
	if c.ListingChecksPerMinute < 0 || c.MessageChecksPerMinute < 0 {
		return fmt.Errorf("config: rate limits must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
