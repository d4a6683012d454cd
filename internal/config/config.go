// Package config reads service settings from .env files and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/couchbase"
)

// Store backends
const (
	BackendCouchbase = "couchbase"
	BackendMemory    = "memory"
)

// Config is the full service configuration
type Config struct {
	Port                  string
	LogLevel              string
	ElasticsearchURL      string
	StoreBackend          string
	Couchbase             couchbase.Config
	EnableSystemMetrics   bool
	SystemMetricsInterval time.Duration
}

// LoadDotEnv loads ../.env, falling back to .env. Missing files are fine.
func LoadDotEnv() {
	err := godotenv.Load("../.env")
	if err != nil {
		log.Info().Msg("Not found .env file in parent directory, trying current directory")
		err = godotenv.Load(".env")
		if err != nil {
			log.Info().Msg("Not found .env file in current directory, assuming environment variables are set")
		}
	}
}

// Load reads .env files and then the environment
func Load() (Config, error) {
	LoadDotEnv()
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only
func FromEnv() (Config, error) {
	watchInterval, err := durationEnv("WATCH_INTERVAL", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	systemInterval, err := durationEnv("SYSTEM_METRICS_INTERVAL", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	enableSystem, err := strconv.ParseBool(getEnvOrDefault("ENABLE_SYSTEM_METRICS", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ENABLE_SYSTEM_METRICS: %w", err)
	}

	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendCouchbase))
	if backend != BackendCouchbase && backend != BackendMemory {
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q: want %s or %s", backend, BackendCouchbase, BackendMemory)
	}

	return Config{
		Port:             getEnvOrDefault("PANEL_PORT", "8080"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		ElasticsearchURL: os.Getenv("ELASTICSEARCH_URL"),
		StoreBackend:     backend,
		Couchbase: couchbase.Config{
			URL:           getEnvOrDefault("COUCHBASE_URL", "couchbase://localhost"),
			Username:      getEnvOrDefault("COUCHBASE_USERNAME", "Administrator"),
			Password:      getEnvOrDefault("COUCHBASE_PASSWORD", "password"),
			Bucket:        getEnvOrDefault("COUCHBASE_BUCKET", "patients"),
			Scope:         getEnvOrDefault("COUCHBASE_SCOPE", "panel"),
			Collection:    getEnvOrDefault("PATIENT_COLLECTION", "patientFormData"),
			WatchInterval: watchInterval,
		},
		EnableSystemMetrics:   enableSystem,
		SystemMetricsInterval: systemInterval,
	}, nil
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

// getEnvOrDefault gets an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
