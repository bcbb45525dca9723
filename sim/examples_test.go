package sim

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExampleConfigs_Baseline verifies that baseline.yaml loads to the
// reference scenario, with group sizing left at its defaults.
func TestExampleConfigs_Baseline(t *testing.T) {
	// GIVEN the baseline.yaml example config
	cfg, err := LoadSimConfig(filepath.Join("..", "examples", "baseline.yaml"))
	require.NoError(t, err, "failed to load baseline.yaml")

	// THEN validation passes
	require.NoError(t, cfg.Validate())

	// THEN it is exactly the default configuration
	assert.Equal(t, DefaultSimConfig(), cfg)
}

// TestExampleConfigs_Ensemble verifies that ensemble.yaml overrides the group
// sizing and describes a multi-run batch.
func TestExampleConfigs_Ensemble(t *testing.T) {
	// GIVEN the ensemble.yaml example config
	cfg, err := LoadSimConfig(filepath.Join("..", "examples", "ensemble.yaml"))
	require.NoError(t, err, "failed to load ensemble.yaml")

	// THEN validation passes
	require.NoError(t, cfg.Validate())

	// THEN batch and sizing fields come from the file
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 10, cfg.NumRuns)
	assert.Equal(t, 1000, cfg.NumAgents)
	assert.Equal(t, GroupSizing{Mean: 6, Min: 2, Max: 12}, cfg.GroupSizing())
}
