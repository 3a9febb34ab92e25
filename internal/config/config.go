package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the dashboard's runtime settings.
type Config struct {
	// Data sources
	DataDir     string
	DataBaseURL string
	DBPath      string
	StudiesFile string

	// Server
	Host string
	Port string

	// Sessions
	DebounceDelay time.Duration
	CacheSize     int

	LogLevel string
}

// Load reads the configuration from environment variables.
func Load() *Config {
	return &Config{
		DataDir:     getEnv("TRADELENS_DATA_DIR", "data"),
		DataBaseURL: getEnv("TRADELENS_HTTP_BASE_URL", ""),
		DBPath:      getEnv("TRADELENS_DB", ""),
		StudiesFile: getEnv("TRADELENS_STUDIES_FILE", ""),

		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "8080"),

		DebounceDelay: getDurationEnv("TRADELENS_DEBOUNCE", 300*time.Millisecond),
		CacheSize:     getIntEnv("TRADELENS_CACHE_SIZE", 8),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("250ms") or plain milliseconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
