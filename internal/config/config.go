// Package config manages application configuration
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"

	// Database
	DatabaseURL string

	// Security
	SecretKey  string // For JWT signing
	TrustProxy bool   // Honour X-Forwarded-For when hashing visitors

	// Session settings
	SessionDuration time.Duration

	// Referral reporting
	BackendURL    string
	ReportTimeout time.Duration

	// Calendly
	CalendlyURL       string
	CalendlyToken     string
	CalendlyEventType string

	// Partner bootstrap
	AdminEmail        string
	AdminPassword     string
	DefaultCommission decimal.Decimal
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		Port:              getEnv("HKP_PORT", "3000"),
		Environment:       getEnv("HKP_ENV", "development"),
		DatabaseURL:       getEnv("HKP_DATABASE_URL", "launchpad.db"),
		SecretKey:         getEnv("HKP_SECRET_KEY", "dev-secret-key-change-in-production"),
		TrustProxy:        getBoolEnv("HKP_TRUST_PROXY", false),
		SessionDuration:   getDurationEnv("HKP_SESSION_DURATION", 24*time.Hour),
		BackendURL:        getEnv("HKP_BACKEND_URL", "http://localhost:3000"),
		ReportTimeout:     getDurationEnv("HKP_REPORT_TIMEOUT", 2*time.Second),
		CalendlyURL:       getEnv("HKP_CALENDLY_URL", "https://api.calendly.com"),
		CalendlyToken:     os.Getenv("HKP_CALENDLY_TOKEN"),
		CalendlyEventType: os.Getenv("HKP_CALENDLY_EVENT_TYPE"),
		AdminEmail:        os.Getenv("HKP_ADMIN_EMAIL"),
		AdminPassword:     os.Getenv("HKP_ADMIN_PASSWORD"),
		DefaultCommission: getDecimalEnv("HKP_DEFAULT_COMMISSION", decimal.NewFromInt(500)),
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if parsed, err := decimal.NewFromString(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
