package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/sir-sim/sim/trace"
)

// SimConfig is the full configuration of a batch of SIR runs.
// Loaded from the `simulation:` section of a YAML file via LoadSimConfig, or
// assembled by the CLI from flags.
type SimConfig struct {
	Seed              int64   `yaml:"seed" json:"seed"`
	NumRuns           int     `yaml:"num_runs" json:"num_runs"`
	NumAgents         int     `yaml:"num_agents" json:"num_agents"`
	NumSteps          int     `yaml:"num_steps" json:"num_steps"`
	NumContacts       int     `yaml:"num_contacts" json:"num_contacts"` // recorded hint; group sizes come from the fields below
	InfectionProb     float64 `yaml:"infection_prob" json:"infection_prob"`
	InfectionDuration float64 `yaml:"infection_duration" json:"infection_duration"` // advisory, see Environment
	RecoveryProb      float64 `yaml:"recovery_prob" json:"recovery_prob"`

	GroupSizeMean float64 `yaml:"group_size_mean" json:"group_size_mean"`
	MinGroupSize  int     `yaml:"min_group_size" json:"min_group_size"`
	MaxGroupSize  int     `yaml:"max_group_size" json:"max_group_size"`
}

// DefaultSimConfig returns the reference scenario: 100 agents over 28 steps
// with the default group sizing.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Seed:              42,
		NumRuns:           1,
		NumAgents:         100,
		NumSteps:          28,
		NumContacts:       10,
		InfectionProb:     0.1,
		InfectionDuration: 5,
		RecoveryProb:      0.3,
		GroupSizeMean:     DefaultGroupSizeMean,
		MinGroupSize:      DefaultMinGroupSize,
		MaxGroupSize:      DefaultMaxGroupSize,
	}
}

// Environment returns the epidemiological parameters of the config.
func (c SimConfig) Environment() Environment {
	return Environment{
		InfectionProb:     c.InfectionProb,
		InfectionDuration: c.InfectionDuration,
		RecoveryProb:      c.RecoveryProb,
	}
}

// Parameters returns the config in its persisted form.
func (c SimConfig) Parameters() trace.Parameters {
	return trace.Parameters{
		Seed:              c.Seed,
		NumRuns:           c.NumRuns,
		NumAgents:         c.NumAgents,
		NumSteps:          c.NumSteps,
		NumContacts:       c.NumContacts,
		InfectionProb:     c.InfectionProb,
		InfectionDuration: c.InfectionDuration,
		RecoveryProb:      c.RecoveryProb,
		GroupSizeMean:     c.GroupSizeMean,
		MinGroupSize:      c.MinGroupSize,
		MaxGroupSize:      c.MaxGroupSize,
	}
}

// GroupSizing returns the contact-group sizing of the config.
func (c SimConfig) GroupSizing() GroupSizing {
	return GroupSizing{Mean: c.GroupSizeMean, Min: c.MinGroupSize, Max: c.MaxGroupSize}
}

// Validate checks every field. The returned error is a *ConfigurationError.
// Validate checks every field and returns the first *ConfigurationError.
func (c SimConfig) Validate() error {
	if c.NumRuns < 1 {
		return newConfigurationError("num_runs", "must be at least 1, got %d", c.NumRuns)
	}
	return c.validateRun()
}

// validateRun checks the fields a single SimulationRun depends on.
func (c SimConfig) validateRun() error {
	if c.NumAgents < 1 {
		return newConfigurationError("num_agents", "must be at least 1, got %d", c.NumAgents)
	}
	if c.NumSteps < 1 {
		return newConfigurationError("num_steps", "must be at least 1, got %d", c.NumSteps)
	}
	if c.NumContacts < 0 {
		return newConfigurationError("num_contacts", "must be non-negative, got %d", c.NumContacts)
	}
	if err := c.Environment().Validate(); err != nil {
		return err
	}
	if math.IsNaN(c.GroupSizeMean) || math.IsInf(c.GroupSizeMean, 0) || c.GroupSizeMean <= 0 {
		return newConfigurationError("group_size_mean", "must be a finite positive number, got %v", c.GroupSizeMean)
	}
	if c.MinGroupSize < 1 {
		return newConfigurationError("min_group_size", "must be at least 1, got %d", c.MinGroupSize)
	}
	if c.MinGroupSize > c.MaxGroupSize {
		return newConfigurationError("min_group_size", "must not exceed max_group_size (%d > %d)", c.MinGroupSize, c.MaxGroupSize)
	}
	return nil
}

// configFile is the on-disk layout: a single `simulation:` section.
type configFile struct {
	Simulation SimConfig `yaml:"simulation"`
}

// LoadSimConfig reads a YAML configuration file. Keys omitted from the file
// keep their DefaultSimConfig values. Uses strict parsing: unrecognized keys
// (typos) are rejected. The result is not validated.
func LoadSimConfig(path string) (SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SimConfig{}, fmt.Errorf("reading sim config: %w", err)
	}
	return ParseSimConfig(data)
}

// ParseSimConfig decodes YAML bytes the same way LoadSimConfig does.
func ParseSimConfig(data []byte) (SimConfig, error) {
	file := configFile{Simulation: DefaultSimConfig()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return SimConfig{}, fmt.Errorf("parsing sim config: %w", err)
	}
	return file.Simulation, nil
}
