package config

import (
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port          string
	DatabasePath  string
	MigrationsDir string
	LogLevel      string

	// External providers
	BrokerBaseURL      string
	RateProviderURL    string
	HTTPClientTimeout  time.Duration
	InstrumentCacheTTL time.Duration

	// Security settings
	TokenEncryptionKey []byte

	// Reconciliation settings
	RefreshSchedule string

	// HTTP settings
	AllowedOrigins []string
	RateLimitBurst int
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from /backend)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	// --- Security (Secrets) ---
	// The key seals broker tokens at rest; 32 bytes hex-encoded.
	keyHex := getRequiredEnv("TOKEN_ENCRYPTION_KEY")
	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != 32 {
		log.Fatalf("FATAL: TOKEN_ENCRYPTION_KEY must be 64 hex characters (32 bytes). Application cannot start securely.")
	}

	// --- Populate the Global Config Struct ---
	Cfg = &AppConfig{
		// Core
		Port:          getEnv("PORT", "8080"),
		DatabasePath:  getEnv("DATABASE_PATH", "./monedero.db"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "db/migrations"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		// Providers
		BrokerBaseURL:      getEnv("BROKER_BASE_URL", "https://api.invertironline.com"),
		RateProviderURL:    getEnv("RATE_PROVIDER_URL", "https://dolarapi.com/v1/dolares/bolsa"),
		HTTPClientTimeout:  getEnvAsDuration("HTTP_CLIENT_TIMEOUT", 20*time.Second),
		InstrumentCacheTTL: getEnvAsDuration("INSTRUMENT_CACHE_TTL", 24*time.Hour),

		// Security
		TokenEncryptionKey: key,

		// Reconciliation
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 1h"),

		// HTTP
		AllowedOrigins: getCSVEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 30),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, Broker=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.BrokerBaseURL)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start securely.", key)
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getCSVEnv retrieves and parses a comma-separated environment variable.
func getCSVEnv(key, fallback string) []string {
	valuesStr := getEnv(key, fallback)
	if valuesStr == "" {
		return []string{}
	}
	values := strings.Split(valuesStr, ",")
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
	}
	return values
}
