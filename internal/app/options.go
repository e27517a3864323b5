package service

import (
	"github.com/okian/ranker/internal/adapters/catalog"
	"github.com/okian/ranker/internal/adapters/repository"
	"github.com/okian/ranker/internal/config"
	"github.com/okian/ranker/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a store. The service does not close injected stores.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStoreDriver selects the store opened by Start when none is injected.
func WithStoreDriver(driver, dsn string) Option {
	return func(s *Service) {
		s.storeDriver = driver
		s.storeDSN = dsn
	}
}

// WithCatalog sets the catalog used by NextBatch and CatalogSummary.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithBatchSize sets the default number of items per round.
func WithBatchSize(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.batchSize = k
		}
	}
}

// WithBaseSelectionSize sets the number of randomly drawn items per round.
func WithBaseSelectionSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.baseSize = n
		}
	}
}

// WithKFactor sets the Elo K-factor.
func WithKFactor(k float64) Option {
	return func(s *Service) {
		s.kFactor = k
	}
}

// WithInitialRating sets the rating of lazily created rows.
func WithInitialRating(r float64) Option {
	return func(s *Service) {
		s.initialRating = r
	}
}

// WithLeaderboardLimit sets the default leaderboard size.
func WithLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.leaderboardLimit = n
		}
	}
}

// WithStatsLimit sets the default size of highest/lowest lists.
func WithStatsLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.statsLimit = n
		}
	}
}

// WithDedupeSize sets how many submission ids are remembered.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		s.dedupeSize = n
	}
}

// WithSeed makes batch selection reproducible.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = &seed
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// OptionsFromConfig maps a loaded configuration onto service options.
func OptionsFromConfig(cfg *config.Config) []Option {
	return []Option{
		WithStoreDriver(cfg.StoreDriver, cfg.StoreDSN),
		WithCatalog(catalog.NewDir(cfg.MediaDir)),
		WithBatchSize(cfg.BatchSize),
		WithBaseSelectionSize(cfg.BaseSelectionSize),
		WithKFactor(cfg.KFactor),
		WithInitialRating(cfg.InitialRating),
		WithLeaderboardLimit(cfg.LeaderboardLimit),
		WithStatsLimit(cfg.StatsLimit),
		WithDedupeSize(cfg.DedupeSize),
	}
}
