// Package testutil provides log invariant checks shared by the sim/ and
// sim/batch/ test packages.
package testutil

import (
	"fmt"
	"sort"
	"testing"

	"github.com/inference-sim/sir-sim/sim/trace"
)

type agentStep struct {
	run, step, agent int
}

// stateRank orders the lifecycle S -> I -> R.
var stateRank = map[string]int{
	trace.StateSusceptible: 0,
	trace.StateInfected:    1,
	trace.StateRecovered:   2,
}

// AssertLogInvariants checks the properties every complete run must satisfy:
//   - each step logs every agent exactly once
//   - agent states only move forward through S, I, R
//   - step 0 holds exactly one Infected agent and no infection events
//   - every infection event matches an S to I change of the infected agent,
//     whose infector was Infected before the step and shared its group
//   - every S to I change has exactly one infection event
func AssertLogInvariants(t *testing.T, l *trace.Log, numAgents, numSteps int) {
	t.Helper()

	states := make(map[agentStep]trace.AgentStateRecord, len(l.States))
	runs := make(map[int]bool)
	for _, r := range l.States {
		key := agentStep{r.RunID, r.Step, r.AgentID}
		if _, dup := states[key]; dup {
			t.Errorf("run %d step %d: agent %d logged twice", r.RunID, r.Step, r.AgentID)
		}
		if _, ok := stateRank[r.State]; !ok {
			t.Errorf("run %d step %d: agent %d has unknown state %q", r.RunID, r.Step, r.AgentID, r.State)
		}
		states[key] = r
		runs[r.RunID] = true
	}

	runIDs := make([]int, 0, len(runs))
	for id := range runs {
		runIDs = append(runIDs, id)
	}
	sort.Ints(runIDs)

	events := make(map[agentStep]trace.InfectionEventRecord, len(l.Infections))
	for _, e := range l.Infections {
		key := agentStep{e.RunID, e.Step, e.InfectedAgentID}
		if _, dup := events[key]; dup {
			t.Errorf("run %d step %d: agent %d infected twice", e.RunID, e.Step, e.InfectedAgentID)
		}
		events[key] = e
		checkEvent(t, states, e)
	}

	for _, run := range runIDs {
		for step := 0; step < numSteps; step++ {
			infected := 0
			for agent := 0; agent < numAgents; agent++ {
				r, ok := states[agentStep{run, step, agent}]
				if !ok {
					t.Errorf("run %d step %d: agent %d missing", run, step, agent)
					continue
				}
				if r.State == trace.StateInfected {
					infected++
				}
				if step == 0 {
					continue
				}
				prev, ok := states[agentStep{run, step - 1, agent}]
				if !ok {
					continue
				}
				if stateRank[r.State] < stateRank[prev.State] {
					t.Errorf("run %d step %d: agent %d moved backwards %s -> %s", run, step, agent, prev.State, r.State)
				}
				if prev.State == trace.StateSusceptible && r.State == trace.StateRecovered {
					t.Errorf("run %d step %d: agent %d skipped Infected", run, step, agent)
				}
				_, hasEvent := events[agentStep{run, step, agent}]
				became := prev.State == trace.StateSusceptible && r.State == trace.StateInfected
				if became != hasEvent {
					t.Errorf("run %d step %d: agent %d S->I=%v but infection event=%v", run, step, agent, became, hasEvent)
				}
			}
			if step == 0 && infected != 1 {
				t.Errorf("run %d: expected exactly 1 infected agent at step 0, got %d", run, infected)
			}
		}
	}
}

func checkEvent(t *testing.T, states map[agentStep]trace.AgentStateRecord, e trace.InfectionEventRecord) {
	t.Helper()
	where := fmt.Sprintf("run %d step %d infection of agent %d", e.RunID, e.Step, e.InfectedAgentID)
	if e.Step == 0 {
		t.Errorf("%s: no infections may happen at step 0", where)
		return
	}
	if e.LapsedInfectionTime < 1 {
		t.Errorf("%s: lapsed infection time %d, want >= 1", where, e.LapsedInfectionTime)
	}
	infector, ok := states[agentStep{e.RunID, e.Step - 1, e.InfectorAgentID}]
	if ok && infector.State != trace.StateInfected {
		t.Errorf("%s: infector %d was %s before the step", where, e.InfectorAgentID, infector.State)
	}
	if e.InfectorGroupID != e.InfectedGroupID {
		t.Errorf("%s: infector group %d != infected group %d", where, e.InfectorGroupID, e.InfectedGroupID)
	}
	if r, ok := states[agentStep{e.RunID, e.Step, e.InfectedAgentID}]; ok && r.GroupID != e.InfectedGroupID {
		t.Errorf("%s: event group %d != logged group %d", where, e.InfectedGroupID, r.GroupID)
	}
}
