// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Backend endpoints
	APIBaseURL string
	WSURL      string

	// Credentials
	Email    string
	Password string

	// Message history
	PageSize         int
	MinFetchDuration time.Duration

	// Typing and presence
	TypingTimeout time.Duration

	// Broker connection
	ReconnectDelay time.Duration

	// Realtime ordering: "arrival" or "timestamp"
	OrderPolicy string

	// Observability
	MetricsAddr string // empty disables the /metrics listener
	LogLevel    string

	Environment string
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080/api"),
		WSURL:      getEnv("WS_URL", "ws://localhost:8080/ws"),

		Email:    getEnv("CHAT_EMAIL", ""),
		Password: getEnv("CHAT_PASSWORD", ""),

		PageSize:         getEnvInt("PAGE_SIZE", 20),
		MinFetchDuration: getEnvDuration("MIN_FETCH_DURATION", "1s"),

		TypingTimeout:  getEnvDuration("TYPING_TIMEOUT", "3s"),
		ReconnectDelay: getEnvDuration("RECONNECT_DELAY", "3s"),

		OrderPolicy: getEnv("ORDER_POLICY", "arrival"),

		MetricsAddr: getEnv("METRICS_ADDR", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Environment: getEnv("ENVIRONMENT", "development"),
	}
	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}
	if !strings.HasPrefix(c.WSURL, "ws://") && !strings.HasPrefix(c.WSURL, "wss://") {
		return fmt.Errorf("WS URL must use the ws or wss scheme")
	}
	if c.Email == "" || c.Password == "" {
		return fmt.Errorf("CHAT_EMAIL and CHAT_PASSWORD are required")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("page size must be between 1 and 100")
	}
	if c.MinFetchDuration < 0 {
		return fmt.Errorf("min fetch duration cannot be negative")
	}
	if c.TypingTimeout < time.Second {
		return fmt.Errorf("typing timeout must be at least 1s")
	}
	if c.ReconnectDelay < time.Second {
		return fmt.Errorf("reconnect delay must be at least 1s")
	}
	switch c.OrderPolicy {
	case "arrival", "timestamp":
	default:
		return fmt.Errorf("invalid order policy: %s", c.OrderPolicy)
	}
	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		// If parsing fails, try to parse the default
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
