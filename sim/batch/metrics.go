package batch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// meterName is the instrumentation scope of the batch runner.
const meterName = "github.com/inference-sim/sir-sim/sim/batch"

// runMetrics holds the runner's instruments. A nil *runMetrics records nothing.
type runMetrics struct {
	runs       metric.Int64Counter
	steps      metric.Int64Counter
	infections metric.Int64Counter
	duration   metric.Float64Histogram
}

func newRunMetrics(mp metric.MeterProvider) (*runMetrics, error) {
	meter := mp.Meter(meterName)
	runs, err := meter.Int64Counter("sir.runs.completed",
		metric.WithDescription("Simulation runs that executed every step"))
	if err != nil {
		return nil, err
	}
	steps, err := meter.Int64Counter("sir.steps",
		metric.WithDescription("Simulation steps recorded"))
	if err != nil {
		return nil, err
	}
	infections, err := meter.Int64Counter("sir.infections",
		metric.WithDescription("Infection events recorded"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("sir.run.duration",
		metric.WithDescription("Wall-clock duration of one run"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &runMetrics{runs: runs, steps: steps, infections: infections, duration: duration}, nil
}

// recordRun records one completed run.
func (m *runMetrics) recordRun(ctx context.Context, simID string, batches []*trace.StepBatch, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("sir.simulation_id", simID))
	infections := 0
	for _, b := range batches {
		infections += len(b.Infections)
	}
	m.runs.Add(ctx, 1, attrs)
	m.steps.Add(ctx, int64(len(batches)), attrs)
	m.infections.Add(ctx, int64(infections), attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}
