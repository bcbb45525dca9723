// Package logsink provides sim.LogSink implementations and the storage
// backends they stream to.
//
// Two sinks are available:
//   - Memory accumulates every step in memory (one partition per run).
//   - Stream buffers steps and flushes them to a Store in the background
//     (CSVStore, SQLiteStore, PostgresStore), with a guaranteed final flush
//     on Close.
package logsink

import (
	"context"
	"errors"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// ErrClosed is returned when recording into a sink that has been closed.
var ErrClosed = errors.New("logsink: sink closed")

// Store persists record streams. Write must be all-or-nothing for SQL
// stores; the streaming sink calls it from one goroutine at a time.
type Store interface {
	Write(ctx context.Context, states []trace.AgentStateRecord, infections []trace.InfectionEventRecord) error
	Close() error
}

// MetadataStore is implemented by stores that also persist batch parameters
// and per-run peak statistics.
type MetadataStore interface {
	Store
	SaveParameters(ctx context.Context, params trace.Parameters) error
	SavePeakStats(ctx context.Context, peaks []trace.PeakStats) error
}

// Column layouts shared by every backend.
var (
	stateColumns = []string{"run_id", "step", "agent_id", "state", "group_id"}

	infectionColumns = []string{
		"run_id", "step", "infector_agent_id", "infector_group_id",
		"infected_agent_id", "infected_group_id", "lapsed_infection_time",
	}

	peakColumns = []string{
		"run_id", "num_peak_infected", "peak_infected_step", "num_peak_recovered",
		"peak_recovered_step", "num_peak_susceptible", "peak_susceptible_step",
	}
)

func stateValues(r trace.AgentStateRecord) []any {
	return []any{r.RunID, r.Step, r.AgentID, r.State, r.GroupID}
}

func infectionValues(r trace.InfectionEventRecord) []any {
	return []any{
		r.RunID, r.Step, r.InfectorAgentID, r.InfectorGroupID,
		r.InfectedAgentID, r.InfectedGroupID, r.LapsedInfectionTime,
	}
}

func peakValues(p trace.PeakStats) []any {
	return []any{
		p.RunID, p.PeakInfected, p.PeakInfectedStep, p.PeakRecovered,
		p.PeakRecoveredStep, p.PeakSusceptible, p.PeakSusceptibleStep,
	}
}

// StepRecorder is the sink side of sim.LogSink, restated here so this package
// does not import the engine.
type StepRecorder interface {
	RecordStep(ctx context.Context, batch *trace.StepBatch) error
}

// Tee records every step into each sink in order and stops at the first
// failure.
type Tee []StepRecorder

// RecordStep forwards batch to every sink.
func (t Tee) RecordStep(ctx context.Context, batch *trace.StepBatch) error {
	for _, s := range t {
		if err := s.RecordStep(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}
