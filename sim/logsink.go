package sim

import (
	"context"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// LogSink receives the records a SimulationRun produces, one step at a time.
// Implementations live in sim/logsink (in-memory accumulation, buffered
// streaming to a store). A sink must either accept every record of a batch
// or none of them, and must preserve the order of batches from one run.
type LogSink interface {
	// RecordStep appends one step's agent-state and infection-event records.
	RecordStep(ctx context.Context, batch *trace.StepBatch) error
}
