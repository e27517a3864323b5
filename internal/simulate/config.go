// Package simulate drives the rating engine with synthetic users whose
// preferences follow a hidden quality score, then measures how closely the
// learned leaderboard recovers that order.
package simulate

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig reports an unusable simulation config.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds configuration for a simulation run.
type Config struct {
	Items         int           // catalog size
	Users         int           // synthetic users
	RoundsPerUser int           // rounds each user plays
	BatchSize     int           // items offered per round
	Workers       int           // concurrent workers playing rounds
	Noise         float64       // stddev of the gaussian noise added to hidden quality per judgement
	Seed          int64         // seeds catalog generation, judgements and selection
	Timeout       time.Duration // upper bound on the whole run
	StoreDriver   string        // memory, sqlite or postgres
	StoreDSN      string        // DSN for sqlite/postgres
	MetricsAddr   string        // optional /metrics and /healthz address during the run
	OutputFile    string        // optional JSON report path
	TopN          int           // leaderboard rows included in the report
	Verbose       bool          // log every round
}

// DefaultConfig returns the defaults used by the simulate command.
func DefaultConfig() Config {
	return Config{
		Items:         40,
		Users:         20,
		RoundsPerUser: 50,
		BatchSize:     4,
		Workers:       8,
		Noise:         0.05,
		Seed:          1,
		Timeout:       5 * time.Minute,
		StoreDriver:   "memory",
		TopN:          10,
	}
}

// Validate checks that the run can make progress.
func (c Config) Validate() error {
	switch {
	case c.Items < 2:
		return fmt.Errorf("%w: items must be at least 2", ErrInvalidConfig)
	case c.Users < 1:
		return fmt.Errorf("%w: users must be at least 1", ErrInvalidConfig)
	case c.RoundsPerUser < 1:
		return fmt.Errorf("%w: rounds must be at least 1", ErrInvalidConfig)
	case c.BatchSize < 2:
		return fmt.Errorf("%w: batch size must be at least 2", ErrInvalidConfig)
	case c.Noise < 0:
		return fmt.Errorf("%w: noise must not be negative", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
