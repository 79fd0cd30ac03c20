// Package config loads pipeline configuration from the environment, with an
// optional .env file for local development. Every variable has a default
// that keeps the pipeline runnable; an absent variable only disables the
// feature it gates (spec §6).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all tracker configuration values.
type Config struct {
	// Server
	Addr            string
	Env             string
	GracefulTimeout time.Duration

	// Persistence — DatabaseURL present ⇒ remote Postgres backend,
	// absent ⇒ embedded SQLite at SQLitePath (spec §4.2, §6).
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Upstream providers
	ListingsBaseURL string
	MetricsBaseURL  string
	SSEBaseURL      string
	TargetChain     string

	// Outbound alert sink (spec §4.6.5)
	AlertAPIKey     string
	AlertWebhookURL string

	// Rate limiting — outbound provider gates (spec §4.1)
	ListingsRPS float64
	ListingsBurst int
	MetricsRPS    float64
	MetricsBurst  int

	// Rate limiting — inbound Read API gate
	APIRateLimitRPS   float64
	APIRateLimitBurst int

	// SSE connection manager (spec §4.4)
	SSEMaxConnections int
	SSEStagger        time.Duration

	// Body limits
	MaxBodyBytes int64

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and an optional
// .env file in the working directory.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("GRACEFUL_TIMEOUT_SEC", 15)

	return &Config{
		Addr:            getEnv("GATEWAY_ADDR", ":8080"),
		Env:             getEnv("ENV", "development"),
		GracefulTimeout: time.Duration(gracefulSec) * time.Second,

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/tracker.db"),
		RedisURL:    getEnv("REDIS_URL", ""),

		ListingsBaseURL: getEnv("LISTINGS_BASE_URL", "https://api.dexscreener.com/token-profiles/latest/v1"),
		MetricsBaseURL:  getEnv("METRICS_BASE_URL", "https://api.dexscreener.com/latest/dex/tokens"),
		SSEBaseURL:      getEnv("SSE_BASE_URL", "https://io.dexscreener.com/dex/price-stream"),
		TargetChain:     getEnv("TARGET_CHAIN", "solana"),

		AlertAPIKey:     getEnv("ALERT_API_KEY", ""),
		AlertWebhookURL: getEnv("ALERT_WEBHOOK_URL", ""),

		ListingsRPS:   getEnvFloat("LISTINGS_RPS", 1),
		ListingsBurst: getEnvInt("LISTINGS_BURST", 2),
		MetricsRPS:    getEnvFloat("METRICS_RPS", 10),
		MetricsBurst:  getEnvInt("METRICS_BURST", 20),

		APIRateLimitRPS:   getEnvFloat("API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst: getEnvInt("API_RATE_LIMIT_BURST", 20),

		SSEMaxConnections: getEnvInt("SSE_MAX_CONNECTIONS", 10),
		SSEStagger:        time.Duration(getEnvInt("SSE_STAGGER_MS", 500)) * time.Millisecond,

		MaxBodyBytes: int64(getEnvInt("MAX_BODY_BYTES", 1*1024*1024)),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// UsesRemoteStore reports whether a remote (Postgres) backend is configured.
func (c *Config) UsesRemoteStore() bool {
	return c.DatabaseURL != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
