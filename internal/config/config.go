package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	HTTPPort     string
	DatabaseURL  string
	AppMode      string
	FiberPrefork bool

	QueryTimeout       time.Duration
	NativeWindowFunnel bool

	CompletionWindow     time.Duration
	RecoveryWindow       time.Duration
	BottleneckThreshold  time.Duration
	PriceSpikePct        float64
	FallbackBookingValue float64

	MetadataTTL        time.Duration
	MetadataRefresh    time.Duration
	MetadataSampleDays int
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:     getEnv("HTTP_PORT", ":8080"),
		AppMode:      strings.ToLower(getEnv("APP_MODE", "dev")),
		FiberPrefork: parseBoolEnv("FIBER_PREFORK", false),

		QueryTimeout:       parseDurationEnv("QUERY_TIMEOUT", 10*time.Second),
		NativeWindowFunnel: parseBoolEnv("NATIVE_WINDOW_FUNNEL", true),

		CompletionWindow:     parseDurationEnv("COMPLETION_WINDOW", 24*time.Hour),
		RecoveryWindow:       parseDurationEnv("RECOVERY_WINDOW", 30*24*time.Hour),
		BottleneckThreshold:  parseDurationEnv("BOTTLENECK_THRESHOLD", 5*time.Minute),
		PriceSpikePct:        parseFloatEnv("PRICE_SPIKE_THRESHOLD_PCT", 12.0),
		FallbackBookingValue: parseFloatEnv("FALLBACK_BOOKING_VALUE", 260.0),

		MetadataTTL:        parseDurationEnv("METADATA_TTL", 5*time.Minute),
		MetadataRefresh:    parseDurationEnv("METADATA_REFRESH_EVERY", 5*time.Minute),
		MetadataSampleDays: parseIntEnv("METADATA_SAMPLE_DAYS", 30),
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseIntEnv(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloatEnv(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
