package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	DBSource string
	Port     string
	Env      string
	LogLevel string

	StoreBackend       string
	IdempotencyBackend string
	IdempotencyTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	JWTSecret string
}

// Load reads configuration from the environment, optionally seeded by a .env file
// in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("server_port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("idempotency_ttl", 24*time.Hour)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("ledger_max_attempts", 5)
	v.SetDefault("ledger_backoff_initial", 5*time.Millisecond)
	v.SetDefault("ledger_backoff_max", 200*time.Millisecond)

	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	cfg := &Config{
		DBSource:           v.GetString("db_source"),
		Port:               v.GetString("server_port"),
		Env:                v.GetString("environment"),
		LogLevel:           v.GetString("log_level"),
		StoreBackend:       v.GetString("store_backend"),
		IdempotencyBackend: v.GetString("idempotency_backend"),
		IdempotencyTTL:     v.GetDuration("idempotency_ttl"),
		RedisAddr:          v.GetString("redis_addr"),
		RedisPassword:      v.GetString("redis_password"),
		RedisDB:            v.GetInt("redis_db"),
		MaxAttempts:        v.GetInt("ledger_max_attempts"),
		BackoffInitial:     v.GetDuration("ledger_backoff_initial"),
		BackoffMax:         v.GetDuration("ledger_backoff_max"),
		JWTSecret:          v.GetString("jwt_secret"),
	}

	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendMemory
		if cfg.DBSource != "" {
			cfg.StoreBackend = BackendPostgres
		}
	}
	if cfg.IdempotencyBackend == "" {
		cfg.IdempotencyBackend = cfg.StoreBackend
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMemory, BackendPostgres, c.StoreBackend)
	}
	switch c.IdempotencyBackend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("IDEMPOTENCY_BACKEND must be memory, postgres or redis, got %q", c.IdempotencyBackend)
	}
	if (c.StoreBackend == BackendPostgres || c.IdempotencyBackend == BackendPostgres) && c.DBSource == "" {
		return fmt.Errorf("DB_SOURCE environment variable is required")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}
