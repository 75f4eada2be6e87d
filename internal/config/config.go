package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port         string
	DatabaseURL  string
	RedisURL     string
	NumWorkers   int
	AlertsAPIURL string
	PageSize     int
	Locale       string
	LogLevel     slog.Level
	APIRateLimit int
	SMTP         SMTPConfig
}

// SMTPConfig configures email delivery of test notifications. An empty Addr
// disables email delivery.
type SMTPConfig struct {
	Addr     string
	From     string
	Username string
	Password string
	Timeout  time.Duration
}

// Load reads configuration from environment variables. Values from a .env
// file in the working directory are used for keys not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	pageSize := getEnvInt("PAGE_SIZE", 15)
	if pageSize <= 0 {
		return nil, fmt.Errorf("PAGE_SIZE must be positive, got %d", pageSize)
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  dbURL,
		RedisURL:     redisURL,
		NumWorkers:   getEnvInt("NUM_WORKERS", 10),
		AlertsAPIURL: strings.TrimRight(getEnv("ALERTS_API_URL", ""), "/"),
		PageSize:     pageSize,
		Locale:       getEnv("LOCALE", "en"),
		LogLevel:     level,
		APIRateLimit: getEnvInt("API_RATE_LIMIT", 0),
		SMTP: SMTPConfig{
			Addr:     getEnv("SMTP_ADDR", ""),
			From:     getEnv("SMTP_FROM", "notifications@localhost"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			Timeout:  time.Duration(getEnvInt("SMTP_TIMEOUT_SECONDS", 30)) * time.Second,
		},
	}, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
