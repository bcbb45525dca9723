// Package sim provides the agent-based SIR simulation engine.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - agent.go: Agent lifecycle (S → I → R) and the per-step transition rule
//   - group.go: contact-group partitioning, re-formed every step
//   - simulator.go: SimulationRun and the stepping protocol
//
// # Architecture
//
// The sim package defines the engine and the LogSink interface; everything
// else lives in sub-packages:
//   - sim/trace/: record types (agent states, infection events) and summaries
//   - sim/logsink/: LogSink implementations (in-memory, buffered streaming to
//     CSV, SQLite or Postgres stores)
//   - sim/batch/: Runner, executing N independently seeded runs in parallel
//
// # Determinism
//
// Every stochastic decision draws from the run's RandomSource, seeded from a
// SimulationKey. Run k of a batch uses key seed+k. Two runs with the same key
// and configuration produce identical logs.
package sim
