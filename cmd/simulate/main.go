package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/okian/ranker/internal/config"
	"github.com/okian/ranker/internal/simulate"
	"github.com/okian/ranker/pkg/logger"
)

func main() {
	def := simulate.DefaultConfig()
	// RANKER_* settings seed the batch, logging and metrics defaults. The
	// store stays in memory unless -driver asks otherwise.
	cfg, cfgErr := config.Load(context.Background())
	if cfgErr == nil {
		def.BatchSize = max(cfg.BatchSize, 2)
		def.MetricsAddr = cfg.MetricsAddr
	} else {
		cfg = config.New()
	}
	var (
		items       = flag.Int("items", def.Items, "catalog size")
		users       = flag.Int("users", def.Users, "synthetic users")
		rounds      = flag.Int("rounds", def.RoundsPerUser, "rounds per user")
		batch       = flag.Int("batch", def.BatchSize, "items per round")
		workers     = flag.Int("workers", def.Workers, "concurrent workers")
		noise       = flag.Float64("noise", def.Noise, "judgement noise stddev")
		seed        = flag.Int64("seed", def.Seed, "random seed")
		timeout     = flag.Duration("timeout", def.Timeout, "overall time limit")
		driver      = flag.String("driver", def.StoreDriver, "store driver")
		dsn         = flag.String("dsn", def.StoreDSN, "store DSN")
		metricsAddr = flag.String("metrics", def.MetricsAddr, "serve /metrics and /healthz on this address")
		topN        = flag.Int("top", def.TopN, "leaderboard rows in the report")
		outputFile  = flag.String("output", "", "JSON report file")
		logFile     = flag.String("log", "", "also write logs to this file")
		logFormat   = flag.String("log-format", cfg.LogFormat, "text or json")
		verbose     = flag.Bool("verbose", false, "log every round")
		help        = flag.Bool("help", false, "show help")
	)
	flag.Usage = func() { simulate.ShowHelp(os.Stderr) }
	flag.Parse()

	if *help {
		simulate.ShowHelp(os.Stdout)
		return
	}

	closeLog, err := simulate.SetupLogging(*logFormat, *logFile)
	if err != nil {
		os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()
	if cfgErr != nil {
		logger.Get().Warn(context.Background(), "ignoring invalid RANKER_* config", logger.Error(cfgErr))
	}
	switch {
	case *verbose:
		_ = logger.SetLevelString("debug")
	case logger.SetLevelString(cfg.LogLevel) != nil:
		_ = logger.SetLevelString("info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := simulate.Run(ctx, simulate.Config{
		Items:         *items,
		Users:         *users,
		RoundsPerUser: *rounds,
		BatchSize:     *batch,
		Workers:       *workers,
		Noise:         *noise,
		Seed:          *seed,
		Timeout:       *timeout,
		StoreDriver:   *driver,
		StoreDSN:      *dsn,
		MetricsAddr:   *metricsAddr,
		OutputFile:    *outputFile,
		TopN:          *topN,
		Verbose:       *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: stop already called
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}
