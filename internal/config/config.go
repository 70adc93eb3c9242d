package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the server, read from the
// environment (a .env file is honored in development).
type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	Env       string `envconfig:"ENV" default:"development"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	ClientURL string `envconfig:"CLIENT_URL" default:"http://127.0.0.1:5173"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// StoreBackend selects the message store: memory, postgres or valkey.
	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	ValkeyURL    string `envconfig:"VALKEY_URL"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// Load .env if present (development convenience).
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	switch cfg.StoreBackend {
	case "memory", "postgres", "valkey":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required with the postgres backend")
	}
	if cfg.StoreBackend == "valkey" && cfg.ValkeyURL == "" {
		return nil, fmt.Errorf("VALKEY_URL is required with the valkey backend")
	}
	if cfg.Env == "production" && cfg.StoreBackend == "memory" {
		return nil, fmt.Errorf("the memory backend is not durable, pick postgres or valkey in production")
	}
	return &cfg, nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
