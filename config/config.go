// Package config provides configuration loading for the ride engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds engine configuration.
type Config struct {
	// Service identification
	ServiceName string
	Environment string
	Version     string

	// HTTP server
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Rate limiting. RPS <= 0 disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int

	// Logging
	LogLevel string

	// Dispatch
	SearchRadiusKm    float64
	MaxClaimAttempts  int
	LocationStaleness time.Duration

	// Fare policy
	MinRentalHours   int
	NightWindowStart int // hour of day, inclusive
	NightWindowEnd   int // hour of day, exclusive
	PlatformFeeFlat  float64
	PlatformFeePct   float64 // percent of subtotal; used when > 0

	// Redis (quote cache)
	RedisAddr     string
	RedisPassword string
	QuoteCacheTTL time.Duration

	// Azure SQL (external roster)
	SQLConnectionString string

	// Event Hubs (driver-state stream)
	EventHubsNamespace      string
	EventHubName            string
	EventHubsConsumerGroup  string
	StorageConnectionString string // blob storage backing the checkpoint store
	CheckpointContainer     string

	// Telemetry
	OTLPEndpoint string
}

// Load loads configuration from environment variables.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		ServiceName:  serviceName,
		Environment:  getEnv("ENVIRONMENT", "development"),
		Version:      getEnv("VERSION", "0.0.1"),
		Port:         getEnvInt("PORT", 8080),
		ReadTimeout:  getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 100),

		SearchRadiusKm:    getEnvFloat("SEARCH_RADIUS_KM", 5.0),
		MaxClaimAttempts:  getEnvInt("MAX_CLAIM_ATTEMPTS", 3),
		LocationStaleness: getEnvDuration("LOCATION_STALENESS", 2*time.Minute),

		MinRentalHours:   getEnvInt("MIN_RENTAL_HOURS", 4),
		NightWindowStart: getEnvInt("NIGHT_WINDOW_START", 22),
		NightWindowEnd:   getEnvInt("NIGHT_WINDOW_END", 6),
		PlatformFeeFlat:  getEnvFloat("PLATFORM_FEE_FLAT", 0),
		PlatformFeePct:   getEnvFloat("PLATFORM_FEE_PCT", 0),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		QuoteCacheTTL: getEnvDuration("QUOTE_CACHE_TTL", 2*time.Minute),

		SQLConnectionString: getEnv("SQL_CONNECTION_STRING", ""),

		EventHubsNamespace:      getEnv("EVENTHUBS_NAMESPACE", ""),
		EventHubName:            getEnv("EVENTHUB_NAME", "driver-state"),
		EventHubsConsumerGroup:  getEnv("EVENTHUBS_CONSUMER_GROUP", "$Default"),
		StorageConnectionString: getEnv("STORAGE_CONNECTION_STRING", ""),
		CheckpointContainer:     getEnv("CHECKPOINT_CONTAINER", "eventhub-checkpoints"),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
func MustLoad(serviceName string) *Config {
	cfg, err := Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.SearchRadiusKm <= 0 {
		return fmt.Errorf("SEARCH_RADIUS_KM must be > 0, got %v", c.SearchRadiusKm)
	}
	if c.MaxClaimAttempts < 1 {
		return fmt.Errorf("MAX_CLAIM_ATTEMPTS must be >= 1, got %d", c.MaxClaimAttempts)
	}
	if c.MinRentalHours < 1 {
		return fmt.Errorf("MIN_RENTAL_HOURS must be >= 1, got %d", c.MinRentalHours)
	}
	if c.NightWindowStart < 0 || c.NightWindowStart > 23 {
		return fmt.Errorf("NIGHT_WINDOW_START must be an hour 0-23, got %d", c.NightWindowStart)
	}
	if c.NightWindowEnd < 0 || c.NightWindowEnd > 23 {
		return fmt.Errorf("NIGHT_WINDOW_END must be an hour 0-23, got %d", c.NightWindowEnd)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 1 when rate limiting is enabled, got %d", c.RateLimitBurst)
	}
	if c.PlatformFeePct < 0 || c.PlatformFeePct > 100 {
		return fmt.Errorf("PLATFORM_FEE_PCT must be 0-100, got %v", c.PlatformFeePct)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions for environment variables.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
