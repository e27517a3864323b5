package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/okian/ranker/internal/adapters/catalog"
	app "github.com/okian/ranker/internal/app"
	"github.com/okian/ranker/internal/config"
	"github.com/okian/ranker/pkg/logger"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `Usage: ranker <command> [flags]

Commands:
  select      -user U [-k N]                pick the next batch from media_dir
  submit      -user U -order a,b,c [-id ID] record a best-to-worst ranking
  leaderboard [-limit N]                    global leaderboard
  stats       -user U [-limit N]            the user's highest and lowest items
  global      [-user U] [-limit N]          global highest and lowest items
  groups                                    ratings grouped by normalized name
  summary                                   ranking totals
  catalog                                   media_dir summary
  overview    -user U                       everything above for one user
  events                                    the full ranking log

Configuration is read from RANKER_CONFIG (YAML) and RANKER_* variables.
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		_, _ = io.WriteString(stderr, usage)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	if err := logger.InitWithFormat(logger.FormatText, stderr); err != nil {
		_, _ = io.WriteString(stderr, "failed to initialize logging: "+err.Error()+"\n")
		return exitError
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		_, _ = io.WriteString(stderr, "failed to load config: "+err.Error()+"\n")
		return exitError
	}
	if err := logger.InitWithFormat(cfg.LogFormat, stderr); err != nil {
		_, _ = io.WriteString(stderr, "failed to initialize logging: "+err.Error()+"\n")
		return exitError
	}
	log := logger.Named("ranker")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	svc := app.New(append(app.OptionsFromConfig(cfg), app.WithLogger(log))...)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return exitError
	}
	defer svc.Stop()

	env := &cmdEnv{svc: svc, cfg: cfg, stdout: stdout, stderr: stderr}
	if err := cmd(ctx, env, args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			return exitUsage
		}
		log.Error(ctx, "command failed", logger.String("command", args[0]), logger.Error(err))
		return exitError
	}
	return exitOK
}

type cmdEnv struct {
	svc    *app.Service
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

func (e *cmdEnv) print(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func (e *cmdEnv) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

type command func(ctx context.Context, env *cmdEnv, args []string) error

var commands = map[string]command{ //nolint:gochecknoglobals // command table
	"select":      runSelect,
	"submit":      runSubmit,
	"leaderboard": runLeaderboard,
	"stats":       runStats,
	"global":      runGlobal,
	"groups":      runGroups,
	"summary":     runSummary,
	"catalog":     runCatalog,
	"overview":    runOverview,
	"events":      runEvents,
}

func requireUser(fs *flag.FlagSet, user string) error {
	if strings.TrimSpace(user) == "" {
		fmt.Fprintf(fs.Output(), "%s: -user is required\n", fs.Name())
		return errUsage
	}
	return nil
}

func runSelect(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("select")
	user := fs.String("user", "", "username")
	k := fs.Int("k", env.cfg.BatchSize, "batch size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(fs, *user); err != nil {
		return err
	}

	names, err := catalog.NewDir(env.cfg.MediaDir).Names(ctx)
	if err != nil {
		return err
	}
	batch, err := env.svc.SelectBatch(ctx, *user, names, *k)
	if err != nil {
		return err
	}
	return env.print(batch)
}

func runSubmit(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("submit")
	user := fs.String("user", "", "username")
	order := fs.String("order", "", "comma separated names, best first")
	id := fs.String("id", "", "optional submission id for idempotent retries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(fs, *user); err != nil {
		return err
	}

	names := splitOrder(*order)
	if *id != "" {
		ev, err := env.svc.SubmitRankingOnce(ctx, *id, *user, names)
		if err != nil {
			return err
		}
		return env.print(ev)
	}
	ev, err := env.svc.SubmitRanking(ctx, *user, names)
	if err != nil {
		return err
	}
	return env.print(ev)
}

func splitOrder(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runLeaderboard(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("leaderboard")
	limit := fs.Int("limit", env.cfg.LeaderboardLimit, "rows")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rows, err := env.svc.GlobalLeaderboard(ctx, *limit)
	if err != nil {
		return err
	}
	return env.print(rows)
}

func runStats(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("stats")
	user := fs.String("user", "", "username")
	limit := fs.Int("limit", env.cfg.StatsLimit, "rows per list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(fs, *user); err != nil {
		return err
	}
	stats, err := env.svc.UserStats(ctx, *user, *limit)
	if err != nil {
		return err
	}
	return env.print(stats)
}

func runGlobal(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("global")
	user := fs.String("user", "", "annotate rows with this user's ratings")
	limit := fs.Int("limit", env.cfg.StatsLimit, "rows per list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		stats, err := env.svc.GlobalStats(ctx, *limit)
		if err != nil {
			return err
		}
		return env.print(stats)
	}
	stats, err := env.svc.GlobalStatsWithUser(ctx, *user, *limit)
	if err != nil {
		return err
	}
	return env.print(stats)
}

func runGroups(ctx context.Context, env *cmdEnv, args []string) error {
	if err := env.flags("groups").Parse(args); err != nil {
		return err
	}
	groups, err := env.svc.GroupedStats(ctx)
	if err != nil {
		return err
	}
	return env.print(groups)
}

func runSummary(ctx context.Context, env *cmdEnv, args []string) error {
	if err := env.flags("summary").Parse(args); err != nil {
		return err
	}
	sum, err := env.svc.Summary(ctx)
	if err != nil {
		return err
	}
	return env.print(sum)
}

func runCatalog(ctx context.Context, env *cmdEnv, args []string) error {
	if err := env.flags("catalog").Parse(args); err != nil {
		return err
	}
	sum, err := env.svc.CatalogSummary(ctx)
	if err != nil {
		return err
	}
	return env.print(sum)
}

func runOverview(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("overview")
	user := fs.String("user", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(fs, *user); err != nil {
		return err
	}
	ov, err := env.svc.Overview(ctx, *user)
	if err != nil {
		return err
	}
	return env.print(ov)
}

func runEvents(ctx context.Context, env *cmdEnv, args []string) error {
	if err := env.flags("events").Parse(args); err != nil {
		return err
	}
	events, err := env.svc.Events(ctx)
	if err != nil {
		return err
	}
	return env.print(events)
}
