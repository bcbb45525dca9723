// Defines the Agent struct that models one individual in the SIR simulation.
// Tracks disease state and infection provenance (who, when).

package sim

import (
	"math"
)

// State represents the disease state of an agent.
type State string

const (
	Susceptible State = "S"
	Infected    State = "I"
	Recovered   State = "R"
)

const (
	// NoAgent marks an absent agent reference (e.g. the seed case has no infector).
	NoAgent = -1
	// NotInfected marks an agent that has never entered the Infected state.
	NotInfected = -1
)

// Agent models a single individual's lifecycle in the simulation.
// Agents live in an id-indexed slice owned by SimulationRun; InfectedBy is an
// index into that slice, never a pointer.
type Agent struct {
	ID         int   // Stable identity within a run, 0..population-1
	State      State // S, I or R
	InfectedBy int   // ID of the transmitting agent, NoAgent for the seed case and the never-infected
	InfectedAt int   // Step at which the agent became Infected, NotInfected otherwise
	GroupID    int   // Contact group for the current step; reassigned every step
}

func newAgent(id int) Agent {
	return Agent{
		ID:         id,
		State:      Susceptible,
		InfectedBy: NoAgent,
		InfectedAt: NotInfected,
		GroupID:    -1,
	}
}

// Infector returns the id of the agent that infected a, if any.
func (a Agent) Infector() (int, bool) {
	return a.InfectedBy, a.InfectedBy != NoAgent
}

// InfectedFor returns how long a has been infected at step, or false when a
// is not currently Infected.
func (a Agent) InfectedFor(step int) (int, bool) {
	if a.State != Infected || a.InfectedAt == NotInfected {
		return 0, false
	}
	return step - a.InfectedAt, true
}

// InfectionProbability is the chance that a susceptible agent is infected by at
// least one of nI independent infectious contacts, each transmitting with p.
func InfectionProbability(p float64, nI int) float64 {
	if nI <= 0 {
		return 0
	}
	return 1 - math.Pow(1-p, float64(nI))
}

// transition is a state change decided against the pre-step snapshot and
// applied only after every agent of the step has been evaluated.
type transition struct {
	agent    int
	to       State
	infector int
}

// decideTransition evaluates one agent for one step. infectious lists the
// Infected members of the agent's group as they were at the start of the step.
// Draw order: one Float64 for S (only when infectious is non-empty) followed
// by one Pick on infection; one Float64 for I; none for R.
func decideTransition(a *Agent, infectious []int, env Environment, rnd *RandomSource) (transition, bool) {
	switch a.State {
	case Susceptible:
		if len(infectious) == 0 {
			return transition{}, false
		}
		if rnd.Float64() < InfectionProbability(env.InfectionProb, len(infectious)) {
			return transition{agent: a.ID, to: Infected, infector: Pick(rnd, infectious)}, true
		}
	case Infected:
		// Recovery is memoryless; InfectionDuration is not consulted.
		if rnd.Float64() < env.RecoveryProb {
			return transition{agent: a.ID, to: Recovered, infector: NoAgent}, true
		}
	}
	return transition{}, false
}
