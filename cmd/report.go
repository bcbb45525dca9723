package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/sir-sim/sim/logsink"
	"github.com/inference-sim/sir-sim/sim/trace"
)

var (
	reportSQLitePath string // SQLite database written by `run --sqlite`
	reportSimID      string // Simulation id to summarize
	reportCountsDir  string // Directory for per-run S/I/R count CSVs
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a stored simulation",
	Long:  "Load a simulation's logs from a SQLite database, print per-run final counts and peaks, and optionally export per-run count CSVs.",
	Run: func(cmd *cobra.Command, args []string) {
		summaries, err := loadStoredSummaries(cmd.Context(), reportSQLitePath, reportSimID)
		if err != nil {
			logrus.Fatalf("Failed to load simulation %s: %v", reportSimID, err)
		}
		if reportCountsDir != "" {
			if _, err := logsink.ExportRunCounts(reportCountsDir, summaries); err != nil {
				logrus.Fatalf("Failed to export counts: %v", err)
			}
		}
		if err := printSummary(os.Stdout, reportSimID, summaries); err != nil {
			logrus.Fatalf("Failed to print summary: %v", err)
		}
	},
}

// loadStoredSummaries rebuilds run summaries from stored logs and warns when
// the stored peaks disagree with the recomputed ones.
func loadStoredSummaries(ctx context.Context, path, simID string) ([]trace.RunSummary, error) {
	id, err := uuid.Parse(simID)
	if err != nil {
		return nil, fmt.Errorf("invalid simulation id %q: %w", simID, err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	store, err := logsink.OpenSQLiteStore(ctx, path, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	l, err := store.LoadLog(ctx)
	if err != nil {
		return nil, err
	}
	if len(l.States) == 0 {
		return nil, fmt.Errorf("no records for simulation %s", simID)
	}
	summaries := trace.Summarize(l)

	stored, err := store.LoadPeakStats(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		for i, p := range trace.Peaks(summaries) {
			if i >= len(stored) || stored[i] != p {
				logrus.Warnf("report: stored peaks for run %d differ from recomputed peaks", p.RunID)
			}
		}
	}
	return summaries, nil
}

func init() {
	reportCmd.Flags().StringVar(&reportSQLitePath, "sqlite", "", "SQLite database written by `run --sqlite`")
	reportCmd.Flags().StringVar(&reportSimID, "sim-id", "", "Simulation id printed by `run`")
	reportCmd.Flags().StringVar(&reportCountsDir, "counts-dir", "", "Write run_<k>.csv S/I/R counts to this directory")
	_ = reportCmd.MarkFlagRequired("sqlite")
	_ = reportCmd.MarkFlagRequired("sim-id")

	rootCmd.AddCommand(reportCmd)
}
