package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ranker/internal/adapters/catalog"
	"github.com/okian/ranker/internal/adapters/http/observe"
	"github.com/okian/ranker/internal/adapters/mq/queue"
	"github.com/okian/ranker/internal/adapters/mq/worker"
	service "github.com/okian/ranker/internal/app"
	"github.com/okian/ranker/internal/domain/model"
	"github.com/okian/ranker/pkg/logger"
)

// player plays one round: fetch a batch, judge it, submit the order.
type player struct {
	svc     *service.Service
	judge   *Judge
	verbose bool
	log     logger.Logger
}

func (p *player) Play(ctx context.Context, r model.Round) error {
	batch, err := p.svc.NextBatch(ctx, r.Username)
	if err != nil {
		return fmt.Errorf("next batch: %w", err)
	}
	order := p.judge.Order(batch)
	if _, err := p.svc.SubmitRankingOnce(ctx, r.ID, r.Username, order); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if p.verbose {
		p.log.Debug(ctx, "round played",
			logger.String("user", r.Username),
			logger.Int("seq", r.Seq),
			logger.Strings("order", order),
		)
	}
	return nil
}

// Run executes a full simulation and returns its report.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	log := logger.Named("simulate")
	start := time.Now()
	log.Info(ctx, "starting simulation",
		logger.Int("items", cfg.Items),
		logger.Int("users", cfg.Users),
		logger.Int("rounds", cfg.RoundsPerUser),
		logger.Int("workers", cfg.Workers),
		logger.Float64("noise", cfg.Noise),
	)

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // simulation is not security sensitive
	cat := GenerateCatalog(cfg.Items, rng)
	users := GenerateUsers(cfg.Users)

	opts := []service.Option{
		service.WithCatalog(catalog.NewStatic(cat.Names...)),
		service.WithBatchSize(cfg.BatchSize),
		service.WithSeed(cfg.Seed),
		service.WithLogger(log),
	}
	if cfg.StoreDriver != "" {
		opts = append(opts, service.WithStoreDriver(cfg.StoreDriver, cfg.StoreDSN))
	}
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if cfg.MetricsAddr != "" {
		// Runs before the deferred svc.Stop, so the server exits first.
		stopServer := serveObservability(ctx, cfg.MetricsAddr, svc, log)
		defer func() {
			if err := stopServer(); err != nil {
				log.Error(ctx, "observability server failed", logger.Error(err))
			}
		}()
	}

	total := cfg.Users * cfg.RoundsPerUser
	q := queue.NewInMemoryQueue(queue.WithCapacity(total))
	for seq := range cfg.RoundsPerUser {
		for _, u := range users {
			if !q.Enqueue(ctx, model.Round{ID: uuid.NewString(), Username: u, Seq: seq}) {
				return nil, fmt.Errorf("enqueue round %d for %s: queue rejected it", seq, u)
			}
		}
	}
	_ = q.Close()

	p := &player{
		svc:     svc,
		judge:   NewJudge(cat, cfg.Noise, rand.New(rand.NewSource(cfg.Seed+1))), //nolint:gosec // simulation is not security sensitive
		verbose: cfg.Verbose,
		log:     log,
	}
	pool := worker.NewPool(cfg.Workers, q, p, worker.WithLogger(log))
	pool.Start(ctx)
	if err := pool.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for workers: %w", err)
	}

	report, err := buildReport(ctx, svc, cfg, cat, pool)
	if err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)
	if report.Duration > 0 {
		report.RoundsPerSecond = float64(report.Played) / report.Duration.Seconds()
	}

	log.Info(ctx, "simulation finished",
		logger.Int64("played", report.Played),
		logger.Int64("failed", report.Failed),
		logger.Float64("kendallTau", report.KendallTau),
		logger.Duration("duration", report.Duration),
	)

	if cfg.OutputFile != "" {
		if err := report.WriteFile(cfg.OutputFile); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}
	if report.Played == 0 {
		return report, errors.New("no rounds were played")
	}
	return report, nil
}

// serveObservability runs /healthz and /metrics until the returned func is
// called. The func blocks until the server has exited and returns its error.
func serveObservability(ctx context.Context, addr string, provider observe.SummaryProvider, log logger.Logger) func() error {
	ctx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- observe.NewServer(provider, log).ListenAndServe(ctx, addr)
	}()
	return func() error {
		cancel()
		return <-errCh
	}
}

func buildReport(ctx context.Context, svc *service.Service, cfg Config, cat Catalog, pool *worker.Pool) (*Report, error) {
	full, err := svc.GlobalLeaderboard(ctx, cfg.Items)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	groups, err := svc.GroupedStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("grouped stats: %w", err)
	}
	summary, err := svc.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	learned := make([]string, len(full))
	for i, e := range full {
		learned[i] = e.Name
	}

	top := full
	if cfg.TopN > 0 && len(top) > cfg.TopN {
		top = top[:cfg.TopN]
	}
	trueOrder := cat.TrueOrder()
	if cfg.TopN > 0 && len(trueOrder) > cfg.TopN {
		trueOrder = trueOrder[:cfg.TopN]
	}

	return &Report{
		Config:     cfg,
		Rounds:     cfg.Users * cfg.RoundsPerUser,
		Played:     pool.Processed(),
		Failed:     pool.Failed(),
		KendallTau: KendallTau(learned, cat.Quality),
		Top:        top,
		TrueTop:    trueOrder,
		Groups:     groups,
		Summary:    summary,
	}, nil
}
