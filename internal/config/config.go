package config

import (
	"os"
	"strconv"
	"time"
)

// ServiceConfig holds the receptionist service configuration.
type ServiceConfig struct {
	Port string

	// ElevenLabs configuration
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ProviderTimeout   time.Duration

	// Admin authentication
	AdminJWTSecret string

	// Redis configuration (optional; cache invalidation stays local without it)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Public lookup path
	LookupCacheTTL      time.Duration
	PublicRatePerSecond float64
	PublicRateBurst     int

	EnableCORS bool
}

// LoadServiceConfigFromEnv loads the service configuration from environment variables.
func LoadServiceConfigFromEnv() *ServiceConfig {
	return &ServiceConfig{
		Port: getEnvOrDefault("RECEPTIONIST_PORT", "8080"),

		ElevenLabsAPIKey:  getEnvOrDefault("ELEVENLABS_API_KEY", ""),
		ElevenLabsBaseURL: getEnvOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ProviderTimeout:   time.Duration(getEnvIntOrDefault("ELEVENLABS_TIMEOUT_SECONDS", 30)) * time.Second,

		AdminJWTSecret: getEnvOrDefault("ADMIN_JWT_SECRET", ""),

		RedisHost:     getEnvOrDefault("REDIS_HOST", ""),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		LookupCacheTTL:      time.Duration(getEnvIntOrDefault("LOOKUP_CACHE_TTL_SECONDS", 30)) * time.Second,
		PublicRatePerSecond: getEnvFloatOrDefault("PUBLIC_RATE_PER_SECOND", 5),
		PublicRateBurst:     getEnvIntOrDefault("PUBLIC_RATE_BURST", 10),

		EnableCORS: getEnvBoolOrDefault("ENABLE_CORS", true),
	}
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault gets environment variable as int or returns default value
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloatOrDefault gets environment variable as float or returns default value
func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault gets environment variable as bool or returns default value
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
