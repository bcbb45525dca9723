// Package trace provides the record types produced by SIR simulation runs.
// It has no dependencies on sim/ and stores pure data types, so
// analysis tools and storage backends can consume logs without the engine.
package trace

// Disease state codes as written to the logs.
const (
	StateSusceptible = "S"
	StateInfected    = "I"
	StateRecovered   = "R"
)

// AgentStateRecord captures one agent's state at the end of one step.
type AgentStateRecord struct {
	RunID   int    `json:"run_id"`
	Step    int    `json:"step"`
	AgentID int    `json:"agent_id"`
	GroupID int    `json:"group_id"` // contact group the agent belonged to during the step
	State   string `json:"state"`    // "S", "I" or "R"
}

// InfectionEventRecord captures one transmission.
type InfectionEventRecord struct {
	RunID               int `json:"run_id"`
	Step                int `json:"step"`
	InfectorAgentID     int `json:"infector_agent_id"`
	InfectorGroupID     int `json:"infector_group_id"`
	InfectedAgentID     int `json:"infected_agent_id"`
	InfectedGroupID     int `json:"infected_group_id"`
	LapsedInfectionTime int `json:"lapsed_infection_time"` // step - infector's own infection step
}

// Parameters captures the configuration a batch ran with, for persistence
// alongside its logs.
type Parameters struct {
	Seed              int64
	NumRuns           int
	NumAgents         int
	NumSteps          int
	NumContacts       int
	InfectionProb     float64
	InfectionDuration float64
	RecoveryProb      float64
	GroupSizeMean     float64
	MinGroupSize      int
	MaxGroupSize      int
}
