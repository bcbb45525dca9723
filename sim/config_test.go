package sim

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/sir-sim/sim/trace"
)

func TestDefaultSimConfig_IsValid(t *testing.T) {
	cfg := DefaultSimConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultGroupSizing(), cfg.GroupSizing())
	assert.Equal(t, Environment{InfectionProb: 0.1, InfectionDuration: 5, RecoveryProb: 0.3}, cfg.Environment())
}

func TestSimConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*SimConfig)
		wantField string
	}{
		{"zero runs", func(c *SimConfig) { c.NumRuns = 0 }, "num_runs"},
		{"zero agents", func(c *SimConfig) { c.NumAgents = 0 }, "num_agents"},
		{"zero steps", func(c *SimConfig) { c.NumSteps = 0 }, "num_steps"},
		{"negative contacts", func(c *SimConfig) { c.NumContacts = -1 }, "num_contacts"},
		{"infection prob above one", func(c *SimConfig) { c.InfectionProb = 1.5 }, "infection_prob"},
		{"recovery prob negative", func(c *SimConfig) { c.RecoveryProb = -0.01 }, "recovery_prob"},
		{"duration NaN", func(c *SimConfig) { c.InfectionDuration = math.NaN() }, "infection_duration"},
		{"zero group mean", func(c *SimConfig) { c.GroupSizeMean = 0 }, "group_size_mean"},
		{"infinite group mean", func(c *SimConfig) { c.GroupSizeMean = math.Inf(1) }, "group_size_mean"},
		{"zero min group", func(c *SimConfig) { c.MinGroupSize = 0 }, "min_group_size"},
		{"min above max", func(c *SimConfig) { c.MinGroupSize, c.MaxGroupSize = 10, 5 }, "min_group_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected *ConfigurationError, got %v", err)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestSimConfig_Validate_Boundaries(t *testing.T) {
	// GIVEN the smallest legal population and horizon with zero contacts
	cfg := DefaultSimConfig()
	cfg.NumAgents = 1
	cfg.NumSteps = 1
	cfg.NumContacts = 0
	cfg.InfectionProb = 0
	cfg.RecoveryProb = 1
	cfg.MinGroupSize, cfg.MaxGroupSize = 1, 1

	// THEN it validates
	assert.NoError(t, cfg.Validate())
}

func TestParseSimConfig_PartialKeepsDefaults(t *testing.T) {
	// GIVEN YAML that only sets the seed and the population
	data := []byte("simulation:\n  seed: 9\n  num_agents: 250\n")

	// WHEN parsed
	cfg, err := ParseSimConfig(data)

	// THEN the named fields are set and the rest keep their defaults
	require.NoError(t, err)
	want := DefaultSimConfig()
	want.Seed = 9
	want.NumAgents = 250
	assert.Equal(t, want, cfg)
}

func TestParseSimConfig_EmptyInput(t *testing.T) {
	cfg, err := ParseSimConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSimConfig(), cfg)
}

func TestParseSimConfig_UnknownKeyRejected(t *testing.T) {
	// GIVEN a typo in a field name
	data := []byte("simulation:\n  num_agent: 10\n")

	// WHEN parsed
	_, err := ParseSimConfig(data)

	// THEN strict decoding rejects it
	require.Error(t, err)
	assert.Contains(t, err.Error(), "num_agent")
}

func TestLoadSimConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  num_runs: 4\n  recovery_prob: 0.5\n"), 0o644))

	cfg, err := LoadSimConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NumRuns)
	assert.Equal(t, 0.5, cfg.RecoveryProb)
}

func TestLoadSimConfig_MissingFile(t *testing.T) {
	_, err := LoadSimConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSimConfig_Parameters(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.NumRuns = 3
	assert.Equal(t, trace.Parameters{
		Seed: 42, NumRuns: 3, NumAgents: 100, NumSteps: 28, NumContacts: 10,
		InfectionProb: 0.1, InfectionDuration: 5, RecoveryProb: 0.3,
		GroupSizeMean: DefaultGroupSizeMean, MinGroupSize: DefaultMinGroupSize, MaxGroupSize: DefaultMaxGroupSize,
	}, cfg.Parameters())
}
