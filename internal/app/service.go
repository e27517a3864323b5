// Package service is the rating engine facade. It wires the rating store,
// the batch selector, the pairwise Elo updater and the aggregation queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/okian/ranker/internal/adapters/catalog"
	"github.com/okian/ranker/internal/adapters/repository"
	"github.com/okian/ranker/internal/domain/aggregate"
	"github.com/okian/ranker/internal/domain/dedupe"
	"github.com/okian/ranker/internal/domain/elo"
	"github.com/okian/ranker/internal/domain/model"
	"github.com/okian/ranker/internal/domain/pairwise"
	"github.com/okian/ranker/internal/domain/selection"
	"github.com/okian/ranker/internal/domain/types"
	"github.com/okian/ranker/pkg/logger"
	"github.com/okian/ranker/pkg/metrics"
)

// Service implements the rating engine operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	catalog  catalog.Catalog
	selector *selection.Selector
	rater    *elo.Rater
	deduper  dedupe.Deduper
	validate *validator.Validate

	// Configuration
	storeDriver      string
	storeDSN         string
	batchSize        int
	baseSize         int
	kFactor          float64
	initialRating    float64
	leaderboardLimit int
	statsLimit       int
	dedupeSize       int
	seed             *int64

	// State
	started   bool
	ownsStore bool

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver:      repository.DriverMemory,
		batchSize:        4,
		baseSize:         3,
		kFactor:          elo.DefaultKFactor,
		initialRating:    model.DefaultRating,
		leaderboardLimit: aggregate.DefaultLeaderboardLimit,
		statsLimit:       aggregate.DefaultStatsLimit,
		dedupeSize:       10_000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, unless one was injected, and builds the engine
// components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	rater, err := elo.New(elo.WithKFactor(s.kFactor))
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if s.store == nil {
		store, err := repository.Open(ctx, s.storeDriver, s.storeDSN,
			repository.WithInitialRating(s.initialRating),
			repository.WithLogger(s.logger),
		)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}

	selOpts := []selection.Option{selection.WithBaseSize(s.baseSize)}
	if s.seed != nil {
		selOpts = append(selOpts, selection.WithSeed(*s.seed))
	}

	s.rater = rater
	s.selector = selection.New(selOpts...)
	s.deduper = dedupe.New(dedupe.WithCapacity(s.dedupeSize))
	s.validate = validator.New(validator.WithRequiredStructEnabled())
	s.started = true

	metrics.UpdateItemsTotal(s.store.Count(ctx))
	s.logger.Info(ctx, "rating service started",
		logger.String("store", s.storeDriver),
		logger.Int("batchSize", s.batchSize),
		logger.Float64("kFactor", s.kFactor),
	)
	return nil
}

// Stop releases the store if the service opened it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Error(context.Background(), "closing store failed", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}
	s.started = false
	s.logger.Info(context.Background(), "rating service stopped")
}

// ready returns the store once the service has started.
func (s *Service) ready() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// SelectBatch picks up to k items from names for the user's next round.
// k < 1 uses the configured batch size. Every name is registered in the
// store before selection so it exists with the initial rating.
func (s *Service) SelectBatch(ctx context.Context, username string, names []string, k int) ([]string, error) {
	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	if k < 1 {
		k = s.batchSize
	}
	if len(names) == 0 {
		metrics.RecordSelection(0)
		return []string{}, nil
	}

	if err := store.EnsureItems(ctx, names); err != nil {
		metrics.RecordErrorByComponent("service", "select")
		return nil, fmt.Errorf("select batch: %w", err)
	}
	items, err := store.ListItems(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("service", "select")
		return nil, fmt.Errorf("select batch: %w", err)
	}
	ratings := make(map[string]model.Item, len(items))
	for _, it := range items {
		ratings[it.Name] = it
	}

	batch := s.selector.Select(names, k, ratings)
	metrics.RecordSelection(len(batch))
	s.logger.Debug(ctx, "batch selected",
		logger.String("user", username),
		logger.Strings("items", batch),
	)
	return batch, nil
}

// NextBatch selects a batch of the configured size from the catalog.
func (s *Service) NextBatch(ctx context.Context, username string) ([]string, error) {
	names, err := s.catalogNames(ctx)
	if err != nil {
		return nil, err
	}
	return s.SelectBatch(ctx, username, names, s.batchSize)
}

func (s *Service) catalogNames(ctx context.Context) ([]string, error) {
	if s.catalog == nil {
		return []string{}, nil
	}
	names, err := s.catalog.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return names, nil
}

// SubmitRanking records the user's best-to-worst ordering and applies every
// implied pairwise comparison to global and per-user ratings as one atomic
// unit. Orders with fewer than two items are logged without rating changes.
func (s *Service) SubmitRanking(ctx context.Context, username string, order []string) (model.RankingEvent, error) {
	store, err := s.ready()
	if err != nil {
		return model.RankingEvent{}, err
	}
	start := time.Now()

	if err := s.checkSubmission(username, order); err != nil {
		metrics.RecordRejectedSubmission(rejectReason(err))
		return model.RankingEvent{}, err
	}

	var (
		event    model.RankingEvent
		outcomes []pairwise.Outcome
	)
	err = store.Update(ctx, func(tx repository.Tx) error {
		var err error
		event, err = tx.AppendEvent(ctx, model.RankingEvent{
			Username: username,
			Items:    order,
			RatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if len(order) < 2 {
			return nil
		}

		global := make(pairwise.Ledger, len(order))
		mine := make(pairwise.Ledger, len(order))
		// Rows are touched in name order so concurrent submissions lock
		// overlapping rows in the same sequence.
		for _, name := range slices.Sorted(slices.Values(order)) {
			it, err := tx.GetOrCreateItem(ctx, name)
			if err != nil {
				return err
			}
			global[name] = &pairwise.Standing{Rating: it.Rating, Count: it.Count}

			ur, err := tx.GetOrCreateUserRating(ctx, username, name)
			if err != nil {
				return err
			}
			mine[name] = &pairwise.Standing{Rating: ur.Rating, Count: ur.Count}
		}

		outcomes = pairwise.Apply(order, global, s.rater)
		pairwise.Apply(order, mine, s.rater)

		for _, name := range slices.Sorted(slices.Values(order)) {
			g := global[name]
			if err := tx.SetItemRating(ctx, name, g.Rating, g.Count); err != nil {
				return err
			}
			u := mine[name]
			if err := tx.SetUserRating(ctx, username, name, u.Rating, u.Count); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordErrorByComponent("service", "submit")
		s.logger.Error(ctx, "submission failed",
			logger.String("user", username),
			logger.Int("items", len(order)),
			logger.Error(err),
		)
		return model.RankingEvent{}, fmt.Errorf("submit ranking: %w", err)
	}

	metrics.RecordSubmission()
	metrics.RecordComparisons(len(outcomes))
	metrics.RecordSubmissionLatency(float64(time.Since(start).Milliseconds()))
	s.logger.Debug(ctx, "submission applied",
		logger.String("user", username),
		logger.Int64("event", event.ID),
		logger.Int("items", len(order)),
		logger.Int("comparisons", len(outcomes)),
	)
	return event, nil
}

// SubmitRankingOnce applies a submission at most once per submissionID.
// A replayed id returns ErrDuplicateSubmission. A failed submission
// releases its id so the caller may retry. An empty id is not tracked.
func (s *Service) SubmitRankingOnce(ctx context.Context, submissionID, username string, order []string) (model.RankingEvent, error) {
	if _, err := s.ready(); err != nil {
		return model.RankingEvent{}, err
	}
	if submissionID == "" {
		return s.SubmitRanking(ctx, username, order)
	}
	if !s.deduper.Claim(submissionID) {
		metrics.RecordDuplicateSubmission()
		s.logger.Debug(ctx, "duplicate submission skipped", logger.String("submission", submissionID))
		return model.RankingEvent{}, fmt.Errorf("%w: %s", ErrDuplicateSubmission, submissionID)
	}
	ev, err := s.SubmitRanking(ctx, username, order)
	if err != nil {
		s.deduper.Release(submissionID)
		return model.RankingEvent{}, err
	}
	return ev, nil
}

// checkSubmission validates the username and item names.
func (s *Service) checkSubmission(username string, order []string) error {
	err := s.validate.Struct(model.Submission{Username: username, Order: order})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "unique" {
				return fmt.Errorf("%w: %v", ErrDuplicateItem, order)
			}
		}
	}
	return fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
}

func rejectReason(err error) string {
	if errors.Is(err, ErrDuplicateItem) {
		return "duplicate_item"
	}
	return "invalid"
}

func (s *Service) statsLimitOr(limit int) int {
	if limit < 1 {
		return s.statsLimit
	}
	return limit
}

func observeAggregation(query string, start time.Time) {
	metrics.RecordAggregationLatency(query, float64(time.Since(start).Milliseconds()))
}

// GlobalLeaderboard returns up to limit items by global rating.
// limit < 1 uses the configured leaderboard size.
func (s *Service) GlobalLeaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	defer observeAggregation("leaderboard", time.Now())

	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = s.leaderboardLimit
	}
	items, err := store.TopItems(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return aggregate.Leaderboard(items, limit), nil
}

// GlobalStats returns the highest and lowest items by global rating.
func (s *Service) GlobalStats(ctx context.Context, limit int) (types.HighLow[types.Entry], error) {
	defer observeAggregation("global_stats", time.Now())

	store, err := s.ready()
	if err != nil {
		return types.HighLow[types.Entry]{}, err
	}
	items, err := store.ListItems(ctx)
	if err != nil {
		return types.HighLow[types.Entry]{}, fmt.Errorf("global stats: %w", err)
	}
	return aggregate.TopAndBottom(items, s.statsLimitOr(limit)), nil
}

// UserStats returns the user's highest and lowest rated items annotated
// with global ratings.
func (s *Service) UserStats(ctx context.Context, username string, limit int) (types.HighLow[types.UserEntry], error) {
	defer observeAggregation("user_stats", time.Now())

	store, err := s.ready()
	if err != nil {
		return types.HighLow[types.UserEntry]{}, err
	}
	rows, err := store.ListUserRatings(ctx, username)
	if err != nil {
		return types.HighLow[types.UserEntry]{}, fmt.Errorf("user stats: %w", err)
	}
	items, err := store.ListItems(ctx)
	if err != nil {
		return types.HighLow[types.UserEntry]{}, fmt.Errorf("user stats: %w", err)
	}
	return aggregate.UserTopAndBottom(rows, indexItems(items), s.statsLimitOr(limit)), nil
}

// GlobalStatsWithUser returns the global highest and lowest items annotated
// with the user's own rating where one exists.
func (s *Service) GlobalStatsWithUser(ctx context.Context, username string, limit int) (types.HighLow[types.OverlayEntry], error) {
	defer observeAggregation("global_with_user", time.Now())

	store, err := s.ready()
	if err != nil {
		return types.HighLow[types.OverlayEntry]{}, err
	}
	items, err := store.ListItems(ctx)
	if err != nil {
		return types.HighLow[types.OverlayEntry]{}, fmt.Errorf("global stats with user: %w", err)
	}
	rows, err := store.ListUserRatings(ctx, username)
	if err != nil {
		return types.HighLow[types.OverlayEntry]{}, fmt.Errorf("global stats with user: %w", err)
	}
	return aggregate.Overlay(items, rows, s.statsLimitOr(limit)), nil
}

// GroupedStats returns per-normalized-name statistics of global ratings.
func (s *Service) GroupedStats(ctx context.Context) ([]types.GroupStats, error) {
	defer observeAggregation("grouped", time.Now())

	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	items, err := store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("grouped stats: %w", err)
	}
	return aggregate.Grouped(items), nil
}

// Summary reports item and event totals.
func (s *Service) Summary(ctx context.Context) (types.Summary, error) {
	defer observeAggregation("summary", time.Now())

	store, err := s.ready()
	if err != nil {
		return types.Summary{}, err
	}
	total, err := store.EventCount(ctx)
	if err != nil {
		return types.Summary{}, fmt.Errorf("summary: %w", err)
	}
	byUser, err := store.EventCountsByUser(ctx)
	if err != nil {
		return types.Summary{}, fmt.Errorf("summary: %w", err)
	}
	items := store.Count(ctx)
	metrics.UpdateItemsTotal(items)
	metrics.UpdateEventsTotal(total)
	return types.Summary{Items: items, Events: total, EventsByUser: byUser}, nil
}

// CatalogSummary counts catalog entries per normalized name.
func (s *Service) CatalogSummary(ctx context.Context) (types.CatalogSummary, error) {
	names, err := s.catalogNames(ctx)
	if err != nil {
		return types.CatalogSummary{}, err
	}
	return aggregate.CatalogSummary(names), nil
}

// Overview gathers every statistics view for a user from one round of
// concurrent store reads.
func (s *Service) Overview(ctx context.Context, username string) (types.Overview, error) {
	defer observeAggregation("overview", time.Now())

	store, err := s.ready()
	if err != nil {
		return types.Overview{}, err
	}

	var (
		items  []model.Item
		rows   []model.UserItemRating
		names  []string
		total  int64
		byUser map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = store.ListItems(gctx)
		return err
	})
	g.Go(func() (err error) {
		rows, err = store.ListUserRatings(gctx, username)
		return err
	})
	g.Go(func() (err error) {
		names, err = s.catalogNames(gctx)
		return err
	})
	g.Go(func() (err error) {
		total, err = store.EventCount(gctx)
		return err
	})
	g.Go(func() (err error) {
		byUser, err = store.EventCountsByUser(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Overview{}, fmt.Errorf("overview: %w", err)
	}

	return types.Overview{
		Global:      aggregate.Overlay(items, rows, s.statsLimit),
		User:        aggregate.UserTopAndBottom(rows, indexItems(items), s.statsLimit),
		Leaderboard: aggregate.Leaderboard(items, s.leaderboardLimit),
		Groups:      aggregate.Grouped(items),
		Catalog:     aggregate.CatalogSummary(names),
		Summary:     types.Summary{Items: len(items), Events: total, EventsByUser: byUser},
	}, nil
}

// Events returns the ranking event log.
func (s *Service) Events(ctx context.Context) ([]model.RankingEvent, error) {
	store, err := s.ready()
	if err != nil {
		return nil, err
	}
	return store.Events(ctx)
}

func indexItems(items []model.Item) map[string]model.Item {
	m := make(map[string]model.Item, len(items))
	for _, it := range items {
		m[it.Name] = it
	}
	return m
}
