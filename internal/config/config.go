package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Config struct {
	DatabaseDriver  string
	DatabaseURL     string
	ServerAddr      string
	RedisURL        string
	LogLevel        slog.Level
	CORSOrigins     []string
	SessionLifetime time.Duration
}

// Load reads configuration from the environment, after an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		DatabaseURL:     getenv("DATABASE_URL", "pickleball.db?_journal_mode=WAL"),
		ServerAddr:      getenv("SERVER_ADDR", ":8080"),
		RedisURL:        os.Getenv("REDIS_URL"),
		LogLevel:        ParseLevel(os.Getenv("LOG_LEVEL")),
		CORSOrigins:     splitList(getenv("CORS_ORIGINS", "*")),
		SessionLifetime: 24 * time.Hour,
	}

	cfg.DatabaseDriver = os.Getenv("DATABASE_DRIVER")
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DriverSQLite
		if strings.HasPrefix(cfg.DatabaseURL, "postgres://") || strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
			cfg.DatabaseDriver = DriverPostgres
		}
	}
	if cfg.DatabaseDriver != DriverSQLite && cfg.DatabaseDriver != DriverPostgres {
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	if raw := os.Getenv("SESSION_LIFETIME"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_LIFETIME: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("SESSION_LIFETIME must be positive, got %s", d)
		}
		cfg.SessionLifetime = d
	}

	return cfg, nil
}

// ParseLevel accepts debug, info, warn and error; anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
