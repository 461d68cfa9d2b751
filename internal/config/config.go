package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Environment    string
	DBDriver       string
	DatabaseURL    string
	ServerAddr     string
	DBMaxConns     int
	AuthTokenTTL   time.Duration
	NotifyWorkers  int
	NotifyQueue    int
	MigrateOnStart bool
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("no .env file found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so it can be exercised
// without touching the process environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Environment: stringOr(getenv("ENV"), "development"),
		DBDriver:    stringOr(getenv("DB_DRIVER"), DriverPostgres),
		DatabaseURL: getenv("DATABASE_URL"),
		ServerAddr:  stringOr(getenv("SERVER_ADDR"), ":8080"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}
	if cfg.DBDriver != DriverPostgres && cfg.DBDriver != DriverSQLite {
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DBDriver)
	}

	var err error
	if cfg.DBMaxConns, err = positiveInt(getenv, "DB_MAX_CONNS", 20); err != nil {
		return nil, err
	}
	if cfg.NotifyWorkers, err = positiveInt(getenv, "NOTIFY_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.NotifyQueue, err = positiveInt(getenv, "NOTIFY_QUEUE_SIZE", 100); err != nil {
		return nil, err
	}

	cfg.AuthTokenTTL = 24 * time.Hour
	if raw := getenv("AUTH_TOKEN_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("AUTH_TOKEN_TTL must be a positive duration, got %q", raw)
		}
		cfg.AuthTokenTTL = ttl
	}

	if raw := getenv("MIGRATE_ON_START"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("MIGRATE_ON_START must be a boolean, got %q", raw)
		}
		cfg.MigrateOnStart = v
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func stringOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func positiveInt(getenv func(string) string, key string, fallback int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return v, nil
}
