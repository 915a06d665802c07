package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port     string
	LogLevel string

	// Upstream rate provider
	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	// Refresh loop
	BaseCurrency       string
	DefaultSymbols     []string
	AutoRefreshEnabled bool
	RefreshInterval    time.Duration
	MinRefreshInterval time.Duration
	MaxTrackedSymbols  int

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitBurst    int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		UpstreamBaseURL: getEnv("FX_UPSTREAM_BASE_URL", "https://api.frankfurter.dev/v1"),
		UpstreamTimeout: time.Duration(mustAtoi(getEnv("FX_UPSTREAM_TIMEOUT_SECONDS", "10"), 10)) * time.Second,

		BaseCurrency:       getEnv("FX_BASE_CURRENCY", "SGD"),
		DefaultSymbols:     splitList(getEnv("FX_DEFAULT_SYMBOLS", "USD,EUR,GBP,JPY,MYR")),
		AutoRefreshEnabled: getEnv("FX_AUTO_REFRESH_ENABLED", "true") == "true",
		RefreshInterval:    time.Duration(mustAtoi(getEnv("FX_REFRESH_INTERVAL_SECONDS", "60"), 60)) * time.Second,
		MinRefreshInterval: time.Duration(mustAtoi(getEnv("FX_MIN_REFRESH_INTERVAL_SECONDS", "15"), 15)) * time.Second,
		MaxTrackedSymbols:  mustAtoi(getEnv("FX_MAX_TRACKED_SYMBOLS", "10"), 10),

		RateLimitEnabled:  getEnv("RATE_LIMIT_ENABLED", "true") == "true",
		RateLimitRequests: mustAtoi(getEnv("RATE_LIMIT_REQUESTS", "100"), 100),
		RateLimitWindow:   time.Duration(mustAtoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "60"), 60)) * time.Second,
		RateLimitBurst:    mustAtoi(getEnv("RATE_LIMIT_BURST", "10"), 10),
	}, nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func mustAtoi(s string, fallback int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return i
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
