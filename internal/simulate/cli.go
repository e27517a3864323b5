package simulate

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/ranker/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the global logger, teeing to logFile when set.
// The returned close func releases the file.
func SetupLogging(format, logFile string) (func() error, error) {
	if logFile == "" {
		if err := logger.InitWithFormat(format, os.Stdout); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if err := logger.InitWithFormat(format, io.MultiWriter(os.Stdout, f)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return f.Close, nil
}

// ShowHelp prints usage information for the simulate command.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Ranker Simulator
================

Plays synthetic ranking rounds against the rating engine and reports how
well the learned leaderboard recovers each item's hidden quality.

Usage:
  simulate [options]

Options:
  -items int        catalog size (default 40)
  -users int        synthetic users (default 20)
  -rounds int       rounds per user (default 50)
  -batch int        items per round (default 4)
  -workers int      concurrent workers (default 8)
  -noise float      judgement noise stddev (default 0.05)
  -seed int         random seed (default 1)
  -timeout dur      overall time limit (default 5m)
  -driver string    store driver: memory, sqlite, postgres (default memory)
  -dsn string       store DSN for sqlite/postgres
  -metrics string   serve /metrics and /healthz on this address during the run
  -top int          leaderboard rows in the report (default 10)
  -output string    write the JSON report to this file
  -log string       also write logs to this file
  -verbose          log every round
  -help             show this message

Examples:
  simulate -items 100 -users 50 -rounds 100
  simulate -driver sqlite -dsn ./sim.db -output report.json
`)
}
