// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the gateway service.
type Config struct {
	// Network identification
	NetworkID string

	// Server configuration
	ListenAddr  string // HTTP + WebSocket listen address
	MetricsAddr string

	// Database configuration
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds
	DatabaseRequired    bool

	// Chain adapter configuration. Absence of ChainURL disables chain
	// mirroring globally and the gateway runs in local-only mode.
	ChainURL         string
	ChainPackage     string // chain package handle
	ChainRegistry    string // chain registry handle
	ChainSigningKey  string // chain signing key, hex-encoded
	ChainCallTimeout time.Duration

	// Batch submitter schedule
	BatchCronSchedule string // e.g. "0 2 * * *" (daily at 02:00 local)

	// Session limits
	MaxFrameBytes  int64
	PingInterval   time.Duration
	IdleTimeout    time.Duration
	OutboundBuffer int

	LogLevel string
}

// Load reads configuration from environment variables, applying safe
// defaults for everything except DatabaseURL.
func Load() (*Config, error) {
	cfg := &Config{
		NetworkID: getEnv("NETWORK_ID", "devnet"),

		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),
		DatabaseRequired:    getEnvBool("DATABASE_REQUIRED", false),

		ChainURL:         getEnv("CHAIN_URL", ""),
		ChainPackage:     getEnv("CHAIN_PACKAGE", ""),
		ChainRegistry:    getEnv("CHAIN_REGISTRY", ""),
		ChainSigningKey:  getEnv("CHAIN_SIGNING_KEY", ""),
		ChainCallTimeout: getEnvDuration("CHAIN_CALL_TIMEOUT", 30*time.Second),

		BatchCronSchedule: getEnv("BATCH_CRON_SCHEDULE", "0 2 * * *"),

		MaxFrameBytes:  getEnvInt64("MAX_FRAME_BYTES", 8*1024),
		PingInterval:   getEnvDuration("PING_INTERVAL", 30*time.Second),
		IdleTimeout:    getEnvDuration("IDLE_TIMEOUT", 90*time.Second),
		OutboundBuffer: getEnvInt("OUTBOUND_BUFFER", 32),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks that configuration required for production operation
// is present. Call after Load() before starting the service.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}
	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ChainEnabled reports whether chain mirroring should be active. When
// chain configuration is absent the gateway runs in local-only mode
// with all functional paths intact except chain side effects.
func (c *Config) ChainEnabled() bool {
	return c.ChainURL != ""
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
