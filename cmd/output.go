package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/sir-sim/sim"
	"github.com/inference-sim/sir-sim/sim/batch"
	"github.com/inference-sim/sir-sim/sim/logsink"
	"github.com/inference-sim/sir-sim/sim/trace"
)

// closeTimeout bounds the final flush of every output stream.
const closeTimeout = 30 * time.Second

// outputConfig selects where a batch's logs go. Empty fields are skipped.
type outputConfig struct {
	Dir         string
	CountsDir   string
	SQLitePath  string
	PostgresURL string
}

// outputs holds the open streams of one batch and the stores that also take
// parameters and peak statistics.
type outputs struct {
	streams  []*logsink.Stream
	metadata []logsink.MetadataStore
}

func (o *outputs) add(ctx context.Context, store logsink.Store) {
	o.streams = append(o.streams, logsink.OpenStream(ctx, store))
	if m, ok := store.(logsink.MetadataStore); ok {
		o.metadata = append(o.metadata, m)
	}
}

// sink returns the fan-out sink over every stream, or nil when there is none.
func (o *outputs) sink() sim.LogSink {
	if len(o.streams) == 0 {
		return nil
	}
	tee := make(logsink.Tee, len(o.streams))
	for i, s := range o.streams {
		tee[i] = s
	}
	return tee
}

// close flushes and closes every stream, collecting all errors.
func (o *outputs) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	var errs []error
	for _, s := range o.streams {
		errs = append(errs, s.Close(ctx))
	}
	return errors.Join(errs...)
}

func openOutputs(ctx context.Context, cfg outputConfig, simID uuid.UUID) (*outputs, error) {
	o := &outputs{}
	if cfg.Dir != "" {
		store, err := logsink.CreateCSVStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		o.add(ctx, store)
	}
	if cfg.SQLitePath != "" {
		store, err := logsink.OpenSQLiteStore(ctx, cfg.SQLitePath, simID)
		if err != nil {
			return nil, errors.Join(err, o.close())
		}
		o.add(ctx, store)
	}
	if cfg.PostgresURL != "" {
		store, err := logsink.OpenPostgresStore(ctx, cfg.PostgresURL, simID)
		if err != nil {
			return nil, errors.Join(err, o.close())
		}
		o.add(ctx, store)
	}
	return o, nil
}

// runBatch executes cfg, streams its logs to the configured outputs, then
// records parameters and peaks and exports per-run counts.
func runBatch(ctx context.Context, cfg sim.SimConfig, out outputConfig, opts ...batch.Option) (*batch.Result, error) {
	simID := uuid.New()
	o, err := openOutputs(ctx, out, simID)
	if err != nil {
		return nil, err
	}

	opts = append(opts, batch.WithSimulationID(simID))
	if sink := o.sink(); sink != nil {
		opts = append(opts, batch.WithOutput(sink))
	}
	runner, err := batch.NewRunner(cfg, opts...)
	if err != nil {
		return nil, errors.Join(err, o.close())
	}

	res, err := runner.Run(ctx)
	if err != nil {
		return nil, errors.Join(err, o.close())
	}

	for _, s := range o.streams {
		if err := s.Flush(ctx); err != nil {
			return nil, errors.Join(err, o.close())
		}
	}
	for _, m := range o.metadata {
		if err := m.SaveParameters(ctx, cfg.Parameters()); err != nil {
			return nil, errors.Join(err, o.close())
		}
		if err := m.SavePeakStats(ctx, res.Peaks()); err != nil {
			return nil, errors.Join(err, o.close())
		}
	}
	if err := o.close(); err != nil {
		return nil, err
	}

	if out.CountsDir != "" {
		paths, err := logsink.ExportRunCounts(out.CountsDir, res.Summaries)
		if err != nil {
			return nil, err
		}
		logrus.Infof("Wrote %d run count file(s) to %s", len(paths), out.CountsDir)
	}
	return res, nil
}

// runReport is the printed form of a batch.
type runReport struct {
	SimulationID string              `json:"simulation_id"`
	Runs         int                 `json:"runs"`
	Infections   int                 `json:"infection_events"`
	FinalCounts  []trace.StepCounts  `json:"final_counts"`
	Peaks        []trace.PeakStats   `json:"peaks"`
	Ensemble     trace.EnsembleStats `json:"ensemble"`
}

// printSummary writes the per-run final counts and peaks as JSON.
func printSummary(w io.Writer, simID string, summaries []trace.RunSummary) error {
	report := runReport{
		SimulationID: simID,
		Runs:         len(summaries),
		FinalCounts:  make([]trace.StepCounts, 0, len(summaries)),
		Peaks:        trace.Peaks(summaries),
		Ensemble:     trace.Ensemble(summaries),
	}
	for _, s := range summaries {
		report.Infections += s.Infections
		if len(s.Counts) > 0 {
			report.FinalCounts = append(report.FinalCounts, s.Counts[len(s.Counts)-1])
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "=== Simulation Summary ===\n%s\n", data)
	return err
}
