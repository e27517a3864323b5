// Package config defines ranker configuration and its loading pipeline.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers defaults, an optional YAML file, and RANKER_ env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// StoreDriver selects the rating store backend.
	StoreDriver string `koanf:"store_driver" validate:"oneof=memory sqlite postgres"`

	// StoreDSN is the gorm DSN for sqlite/postgres drivers.
	StoreDSN string `koanf:"store_dsn"`

	// MediaDir is the directory listed as the item catalog.
	MediaDir string `koanf:"media_dir" validate:"required"`

	// BatchSize is the number of items offered per ranking round.
	BatchSize int `koanf:"batch_size" validate:"gte=1"`

	// BaseSelectionSize is the number of randomly drawn exploration slots.
	BaseSelectionSize int `koanf:"base_selection_size" validate:"gte=1"`

	// KFactor is the Elo K-factor.
	KFactor float64 `koanf:"k_factor" validate:"gt=0"`

	// InitialRating seeds lazily created rating rows.
	InitialRating float64 `koanf:"initial_rating"`

	// LeaderboardLimit is the default size of the global leaderboard.
	LeaderboardLimit int `koanf:"leaderboard_limit" validate:"gte=1"`

	// StatsLimit is the default size of highest/lowest lists.
	StatsLimit int `koanf:"stats_limit" validate:"gte=1"`

	// DedupeSize bounds the submission-id idempotency guard.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// MetricsAddr optionally serves /metrics and /healthz, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		StoreDriver:       DriverSQLite,
		StoreDSN:          "./ranker.db",
		MediaDir:          "./media",
		BatchSize:         4,
		BaseSelectionSize: 3,
		KFactor:           32,
		InitialRating:     1000,
		LeaderboardLimit:  20,
		StatsLimit:        5,
		DedupeSize:        10_000,
	}
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.StoreDriver != DriverMemory && c.StoreDSN == "" {
		return fmt.Errorf("%w: store_dsn must not be empty for driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}
