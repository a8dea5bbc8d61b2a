package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int `env:"PORT" env-default:"8080"`

	// DatabaseDriver selects the SQL backend, "sqlite" or "postgres".
	DatabaseDriver string `env:"DATABASE_DRIVER" env-default:"sqlite"`

	// DatabaseDSN is the connection string for the selected driver.
	DatabaseDSN string `env:"DATABASE_DSN" env-default:"file:tenders.db?_pragma=journal_mode(WAL)"`

	// PageSize is the default number of tenders per result page.
	PageSize int `env:"PAGE_SIZE" env-default:"20"`

	// IngestEnabled turns the background ingestion loop on.
	IngestEnabled bool `env:"INGEST_ENABLED" env-default:"true"`

	// IngestInterval is the pause between ingestion passes.
	IngestInterval time.Duration `env:"INGEST_INTERVAL" env-default:"30m"`

	// NENBaseURL is the root of the NEN deployment to pull tenders from.
	NENBaseURL string `env:"NEN_BASE_URL" env-default:"https://nen.nipez.cz"`

	// HTTPTimeout bounds a single outbound request during ingestion.
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" env-default:"30s"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from the environment, optionally seeded from a
// .env file in the working directory.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.DatabaseDriver != "sqlite" && cfg.DatabaseDriver != "postgres" {
		return nil, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", cfg.DatabaseDriver)
	}
	if cfg.PageSize < 1 || cfg.PageSize > 100 {
		return nil, fmt.Errorf("PAGE_SIZE must be between 1 and 100, got %d", cfg.PageSize)
	}

	return &cfg, nil
}
