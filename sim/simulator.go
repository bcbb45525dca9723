// sim/simulator.go
package sim

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// SimulationRun owns one population and drives it through NumSteps discrete
// steps. Agents, contact groups and the RandomSource belong to the run alone,
// so independent runs can execute on different goroutines without locking.
//
// Per-step protocol:
//  1. Use the current contact groups (formed at construction for step 0, then
//     re-formed at the end of every step).
//  2. From step 1 on, decide every agent's transition against the pre-step
//     snapshot, then apply all decisions. Step 0 records the seeded
//     population as-is.
//  3. Build the step's agent-state records and the infection events of the
//     agents infected at this step, and hand them to the LogSink in one call.
//  4. Re-form the contact groups for the next step.
//
// Not safe for concurrent use.
type SimulationRun struct {
	runID  int
	cfg    SimConfig
	env    Environment
	sizing GroupSizing
	rnd    *RandomSource
	sink   LogSink

	agents []Agent        // indexed by agent id
	order  []int          // agent ids in the order of the last shuffle
	groups []ContactGroup // partition for the current step

	step   int   // index of the next step to execute
	failed error // sticky: set when a step could not be recorded

	// scratch buffers reused across steps
	pending    []transition
	infectious []int
}

// NewSimulationRun validates cfg, seeds the population from key and forms the
// step-0 contact groups. No random draw happens before validation succeeds.
func NewSimulationRun(cfg SimConfig, runID int, key SimulationKey, sink LogSink) (*SimulationRun, error) {
	if err := cfg.validateRun(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, newConfigurationError("sink", "must not be nil")
	}

	s := &SimulationRun{
		runID:  runID,
		cfg:    cfg,
		env:    cfg.Environment(),
		sizing: cfg.GroupSizing(),
		rnd:    NewRandomSource(key),
		sink:   sink,
		agents: make([]Agent, cfg.NumAgents),
		order:  make([]int, cfg.NumAgents),
	}
	for i := range s.agents {
		s.agents[i] = newAgent(i)
		s.order[i] = i
	}

	seed := s.rnd.IntInRange(0, cfg.NumAgents-1)
	s.agents[seed].State = Infected
	s.agents[seed].InfectedAt = 0

	s.regroup()
	logrus.Debugf("run %d: seeded agent %d, %d groups at step 0", runID, seed, len(s.groups))
	return s, nil
}

// RunID returns the run's index within its batch.
func (s *SimulationRun) RunID() int {
	return s.runID
}

// CurrentStep returns the index of the next step to execute.
func (s *SimulationRun) CurrentStep() int {
	return s.step
}

// Done reports whether every configured step has executed.
func (s *SimulationRun) Done() bool {
	return s.step >= s.cfg.NumSteps
}

// Environment returns the parameters the next step will use.
func (s *SimulationRun) Environment() Environment {
	return s.env
}

// UpdateEnvironment replaces the epidemiological parameters for the steps
// that follow. Must not be called while Step is executing.
func (s *SimulationRun) UpdateEnvironment(env Environment) error {
	if err := env.Validate(); err != nil {
		return err
	}
	s.env = env
	return nil
}

// Agents returns a copy of the population, indexed by agent id.
func (s *SimulationRun) Agents() []Agent {
	out := make([]Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// Groups returns a copy of the current contact-group partition.
func (s *SimulationRun) Groups() []ContactGroup {
	out := make([]ContactGroup, len(s.groups))
	for i, g := range s.groups {
		members := make([]int, len(g.Members))
		copy(members, g.Members)
		out[i] = ContactGroup{ID: g.ID, Members: members}
	}
	return out
}

// Counts tallies the current states of the population.
func (s *SimulationRun) Counts() trace.StepCounts {
	c := trace.StepCounts{Step: s.step}
	for _, a := range s.agents {
		switch a.State {
		case Susceptible:
			c.Susceptible++
		case Infected:
			c.Infected++
		case Recovered:
			c.Recovered++
		}
	}
	return c
}

// Run executes the remaining steps. Cancellation is honored between steps;
// a cancelled run never emits a partial step.
func (s *SimulationRun) Run(ctx context.Context) error {
	for !s.Done() {
		if err := s.Step(ctx); err != nil {
			return err
		}
	}
	logrus.Debugf("run %d: completed %d steps", s.runID, s.cfg.NumSteps)
	return nil
}

// Step executes one step of the protocol. Returns ErrRunComplete when no
// steps remain, ctx.Err() if ctx is done before the step starts, and a
// *LogSinkWriteError when the sink rejects the step's records. After a sink
// failure the run is unusable and every further call returns the same error.
func (s *SimulationRun) Step(ctx context.Context) error {
	if s.failed != nil {
		return s.failed
	}
	if s.Done() {
		return ErrRunComplete
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	step := s.step
	var newlyInfected []int
	if step > 0 {
		newlyInfected = s.advance(step)
	}

	batch := s.buildBatch(step, newlyInfected)
	if err := s.sink.RecordStep(ctx, batch); err != nil {
		s.failed = &LogSinkWriteError{RunID: s.runID, Step: step, Err: err}
		return s.failed
	}

	s.step++
	if !s.Done() {
		s.regroup()
	}
	logrus.Debugf("run %d step %d: %d new infections", s.runID, step, len(newlyInfected))
	return nil
}

// advance decides all transitions of the step against the pre-step states,
// then applies them. Returns the ids of newly infected agents, ascending.
func (s *SimulationRun) advance(step int) []int {
	s.pending = s.pending[:0]
	for _, g := range s.groups {
		s.infectious = s.infectious[:0]
		for _, id := range g.Members {
			if s.agents[id].State == Infected {
				s.infectious = append(s.infectious, id)
			}
		}
		for _, id := range g.Members {
			if tr, ok := decideTransition(&s.agents[id], s.infectious, s.env, s.rnd); ok {
				s.pending = append(s.pending, tr)
			}
		}
	}

	var newlyInfected []int
	for _, tr := range s.pending {
		a := &s.agents[tr.agent]
		a.State = tr.to
		if tr.to == Infected {
			a.InfectedBy = tr.infector
			a.InfectedAt = step
			newlyInfected = append(newlyInfected, a.ID)
		}
	}
	sort.Ints(newlyInfected)
	return newlyInfected
}

// buildBatch assembles the step's records: one state record per agent and one
// infection event per newly infected agent, in a single pass each.
func (s *SimulationRun) buildBatch(step int, newlyInfected []int) *trace.StepBatch {
	batch := &trace.StepBatch{
		RunID:      s.runID,
		Step:       step,
		States:     make([]trace.AgentStateRecord, len(s.agents)),
		Infections: make([]trace.InfectionEventRecord, 0, len(newlyInfected)),
	}
	for i, a := range s.agents {
		batch.States[i] = trace.AgentStateRecord{
			RunID:   s.runID,
			Step:    step,
			AgentID: a.ID,
			GroupID: a.GroupID,
			State:   string(a.State),
		}
	}
	for _, id := range newlyInfected {
		infected := s.agents[id]
		infector := s.agents[infected.InfectedBy]
		batch.Infections = append(batch.Infections, trace.InfectionEventRecord{
			RunID:               s.runID,
			Step:                step,
			InfectorAgentID:     infector.ID,
			InfectorGroupID:     infector.GroupID,
			InfectedAgentID:     infected.ID,
			InfectedGroupID:     infected.GroupID,
			LapsedInfectionTime: step - infector.InfectedAt,
		})
	}
	return batch
}

// regroup forms a fresh partition and stamps each agent with its group id.
func (s *SimulationRun) regroup() {
	s.groups = FormGroups(s.order, s.sizing, s.rnd)
	for _, g := range s.groups {
		for _, id := range g.Members {
			s.agents[id].GroupID = g.ID
		}
	}
}
