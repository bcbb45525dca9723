// Package batch executes a batch of independent SIR runs and collects their
// logs. Run k is seeded with seed + k, so a batch is reproducible run by run
// regardless of how many runs execute concurrently.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/sir-sim/sim"
	"github.com/inference-sim/sir-sim/sim/logsink"
	"github.com/inference-sim/sir-sim/sim/trace"
)

// Result is the merged output of a batch.
type Result struct {
	SimulationID uuid.UUID                    `json:"simulation_id"`
	Config       sim.SimConfig                `json:"config"`
	AgentStates  []trace.AgentStateRecord     `json:"agent_states,omitempty"`
	Infections   []trace.InfectionEventRecord `json:"infections,omitempty"`
	Summaries    []trace.RunSummary           `json:"summaries"`
}

// Log returns the merged record streams as a trace.Log.
func (r *Result) Log() *trace.Log {
	return &trace.Log{States: r.AgentStates, Infections: r.Infections}
}

// Peaks returns the peak statistics of every run, ordered by run.
func (r *Result) Peaks() []trace.PeakStats {
	return trace.Peaks(r.Summaries)
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallelism bounds the number of runs executing at once. Values below
// one are ignored; the default is GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithOutput forwards every run's step batches to sink, run after run in
// run-id order. A run is forwarded as soon as it and all earlier runs finish.
func WithOutput(sink sim.LogSink) Option {
	return func(r *Runner) {
		r.output = sink
	}
}

// WithMeterProvider sets the provider for the runner's metrics. The default
// is the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Runner) {
		r.meterProvider = mp
	}
}

// WithSimulationID fixes the batch's simulation id instead of generating one.
func WithSimulationID(id uuid.UUID) Option {
	return func(r *Runner) {
		r.simID = id
	}
}

// Runner executes a validated batch configuration.
type Runner struct {
	cfg           sim.SimConfig
	parallelism   int
	output        sim.LogSink
	meterProvider metric.MeterProvider
	simID         uuid.UUID
	metrics       *runMetrics
}

// NewRunner validates cfg and prepares a batch. It fails with a
// *sim.ConfigurationError before any run starts.
func NewRunner(cfg sim.SimConfig, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:           cfg,
		parallelism:   runtime.GOMAXPROCS(0),
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.simID == uuid.Nil {
		r.simID = uuid.New()
	}
	m, err := newRunMetrics(r.meterProvider)
	if err != nil {
		logrus.WithError(err).Warn("batch: metrics disabled")
	}
	r.metrics = m
	return r, nil
}

// SimulationID returns the id shared by every run of the batch.
func (r *Runner) SimulationID() uuid.UUID {
	return r.simID
}

// Run executes every run of the batch and merges their logs in run order.
// The first failing run cancels the others; its error is returned.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	n := r.cfg.NumRuns
	key := sim.NewSimulationKey(r.cfg.Seed)
	simID := r.simID.String()
	partitions := make([]*logsink.Memory, n)

	var fwd *forwarder
	if r.output != nil {
		fwd = newForwarder(r.output, n)
	}

	logrus.WithFields(logrus.Fields{
		"simulation_id": simID,
		"runs":          n,
		"agents":        r.cfg.NumAgents,
		"steps":         r.cfg.NumSteps,
		"parallelism":   r.parallelism,
	}).Info("batch: starting")
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for k := 0; k < n; k++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part := logsink.NewMemory()
			partitions[k] = part

			run, err := sim.NewSimulationRun(r.cfg, k, key.ForRun(k), part)
			if err != nil {
				return err
			}
			runStart := time.Now()
			if err := run.Run(gctx); err != nil {
				return fmt.Errorf("run %d: %w", k, err)
			}
			batches := part.Batches()
			r.metrics.recordRun(gctx, simID, batches, time.Since(runStart))
			logrus.WithFields(logrus.Fields{
				"simulation_id": simID,
				"run_id":        k,
				"counts":        run.Counts(),
			}).Debug("batch: run complete")

			if fwd != nil {
				return fwd.complete(gctx, k, batches)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := trace.NewLog()
	for _, part := range partitions {
		merged.Append(part.Log())
	}
	res := &Result{
		SimulationID: r.simID,
		Config:       r.cfg,
		AgentStates:  merged.States,
		Infections:   merged.Infections,
		Summaries:    trace.Summarize(merged),
	}
	logrus.WithFields(logrus.Fields{
		"simulation_id": simID,
		"agent_states":  len(res.AgentStates),
		"infections":    len(res.Infections),
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("batch: complete")
	return res, nil
}

// Run validates cfg and executes it with default options.
func Run(ctx context.Context, cfg sim.SimConfig) (*Result, error) {
	r, err := NewRunner(cfg)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// forwarder releases completed runs to the output sink strictly in run order.
type forwarder struct {
	mu      sync.Mutex
	out     sim.LogSink
	waiting [][]*trace.StepBatch // completed runs not yet forwarded, by run id
	next    int                  // lowest run id not yet forwarded
}

func newForwarder(out sim.LogSink, runs int) *forwarder {
	return &forwarder{out: out, waiting: make([][]*trace.StepBatch, runs)}
}

// complete marks run k finished and forwards every run that is now unblocked.
func (f *forwarder) complete(ctx context.Context, k int, batches []*trace.StepBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.waiting[k] = batches
	for f.next < len(f.waiting) && f.waiting[f.next] != nil {
		for _, b := range f.waiting[f.next] {
			if err := f.out.RecordStep(ctx, b); err != nil {
				return &sim.LogSinkWriteError{RunID: b.RunID, Step: b.Step, Err: err}
			}
		}
		f.waiting[f.next] = nil
		f.next++
	}
	return nil
}
