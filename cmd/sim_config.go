package cmd

import (
	"github.com/spf13/pflag"

	"github.com/inference-sim/sir-sim/sim"
)

// resolveSimConfig builds the batch config: defaults, then the YAML file at
// path (if any), then every flag the user set explicitly. Flags left at their
// defaults never overwrite file values.
func resolveSimConfig(flags *pflag.FlagSet, path string) (sim.SimConfig, error) {
	cfg := sim.DefaultSimConfig()
	if path != "" {
		loaded, err := sim.LoadSimConfig(path)
		if err != nil {
			return sim.SimConfig{}, err
		}
		cfg = loaded
	}

	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("runs") {
		cfg.NumRuns = numRuns
	}
	if flags.Changed("agents") {
		cfg.NumAgents = numAgents
	}
	if flags.Changed("steps") {
		cfg.NumSteps = numSteps
	}
	if flags.Changed("contacts") {
		cfg.NumContacts = numContacts
	}
	if flags.Changed("infection-prob") {
		cfg.InfectionProb = infectionProb
	}
	if flags.Changed("infection-duration") {
		cfg.InfectionDuration = infectionDuration
	}
	if flags.Changed("recovery-prob") {
		cfg.RecoveryProb = recoveryProb
	}
	if flags.Changed("group-size-mean") {
		cfg.GroupSizeMean = groupSizeMean
	}
	if flags.Changed("min-group-size") {
		cfg.MinGroupSize = minGroupSize
	}
	if flags.Changed("max-group-size") {
		cfg.MaxGroupSize = maxGroupSize
	}

	if err := cfg.Validate(); err != nil {
		return sim.SimConfig{}, err
	}
	return cfg, nil
}
