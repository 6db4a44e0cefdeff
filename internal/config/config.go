package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
)

// Config holds all configuration for the catalog sync service
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// GCP
	GCPProjectID string

	// Remote platform
	PlatformBaseURL  string
	PlatformSupplier string

	// Reconcile settings
	ReconcileTimeout time.Duration
	InterItemDelay   time.Duration
	FindScanPages    int
	FindScanPageSize int

	// Rate Limiting
	DefaultRateLimit int // requests per second
}

// Load loads configuration from environment variables
func Load() *Config {
	// Build DATABASE_URL from components using GCP Secret Manager for password
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := secrets.GetDBPassword()
		dbName := getEnv("DB_NAME", "catalog_sync")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	config := &Config{
		Port:        getEnv("PORT", "8105"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseURL: databaseURL,

		// GCP
		GCPProjectID: getEnv("GCP_PROJECT_ID", ""),

		// Remote platform
		PlatformBaseURL:  getEnv("PLATFORM_BASE_URL", ""),
		PlatformSupplier: getEnv("PLATFORM_SUPPLIER_ID", ""),

		// Reconcile settings
		ReconcileTimeout: getEnvAsDuration("RECONCILE_TIMEOUT", 30*time.Minute),
		InterItemDelay:   getEnvAsDuration("INTER_ITEM_DELAY", 300*time.Millisecond),
		FindScanPages:    getEnvAsInt("FIND_SCAN_PAGES", 5),
		FindScanPageSize: getEnvAsInt("FIND_SCAN_PAGE_SIZE", 100),

		// Rate Limiting
		DefaultRateLimit: getEnvAsInt("DEFAULT_RATE_LIMIT", 10),
	}

	// Validate required fields
	if config.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if config.GCPProjectID == "" {
		log.Println("Warning: GCP_PROJECT_ID not set, secrets management will be disabled")
	}

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
