// Package config loads application settings from the environment, with
// a .env file for local development.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime settings.
type Config struct {
	// Database
	DatabaseURL string

	// REST API
	APIToken      string
	APIPort       string
	AllowedOrigin string

	// Logging
	LogLevel string

	// Browser automation
	Headless bool

	// Batch sweeps
	SweepIntervalHours   int
	SweepPageSize        int
	SweepWorkers         int
	LookupTimeoutSeconds int
	ScrapeRatePerMinute  int

	// Captcha solving
	CapSolverAPIKey string

	// Notifications
	DiscordWebhookURL string
	ResendAPIKey      string
	EmailFrom         string
	EmailFromName     string
	AlertEmail        string
}

// MustLoad reads .env (if present) and the environment, exiting on
// missing required settings.
func MustLoad() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment")
	}

	cfg := &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		APIToken:             os.Getenv("API_TOKEN"),
		APIPort:              getEnv("API_PORT", "8080"),
		AllowedOrigin:        os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Headless:             getEnvBool("HEADLESS", true),
		SweepIntervalHours:   getEnvInt("SWEEP_INTERVAL_HOURS", 24),
		SweepPageSize:        getEnvInt("SWEEP_PAGE_SIZE", 50),
		SweepWorkers:         getEnvInt("SWEEP_WORKERS", 3),
		LookupTimeoutSeconds: getEnvInt("LOOKUP_TIMEOUT_SECONDS", 90),
		ScrapeRatePerMinute:  getEnvInt("SCRAPE_RATE_PER_MINUTE", 6),
		CapSolverAPIKey:      os.Getenv("CAPSOLVER_API_KEY"),
		DiscordWebhookURL:    os.Getenv("DISCORD_WEBHOOK_URL"),
		ResendAPIKey:         os.Getenv("RESEND_API_KEY"),
		EmailFrom:            getEnv("EMAIL_FROM", "alerts@licensewatch.dev"),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "License Watch"),
		AlertEmail:           os.Getenv("ALERT_EMAIL"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}
	if cfg.APIToken == "" {
		log.Warn().Msg("API_TOKEN not set, authenticated endpoints will refuse requests")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer setting, using default")
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid boolean setting, using default")
		return fallback
	}
	return b
}
