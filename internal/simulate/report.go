package simulate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/ranker/internal/domain/types"
)

const (
	directoryPermission = 0o750
	reportPermission    = 0o600
)

// Report is the outcome of a simulation run.
type Report struct {
	Config          Config             `json:"config"`
	Rounds          int                `json:"rounds"`
	Played          int64              `json:"played"`
	Failed          int64              `json:"failed"`
	KendallTau      float64            `json:"kendall_tau"`
	Top             []types.Entry      `json:"top"`
	TrueTop         []string           `json:"true_top"`
	Groups          []types.GroupStats `json:"groups"`
	Summary         types.Summary      `json:"summary"`
	Duration        time.Duration      `json:"duration_ns"`
	RoundsPerSecond float64            `json:"rounds_per_second"`
}

// WriteFile stores the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), reportPermission); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
