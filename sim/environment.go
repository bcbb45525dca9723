package sim

import (
	"math"
)

// Environment holds the epidemiological parameters shared by every agent of a
// run. It is read-only while a step executes.
type Environment struct {
	InfectionProb     float64 // per-contact transmission probability per step, in [0,1]
	InfectionDuration float64 // advisory; recovery is governed by RecoveryProb
	RecoveryProb      float64 // per-step recovery probability, in [0,1]
}

// NewEnvironment builds and validates an Environment.
func NewEnvironment(infectionProb, infectionDuration, recoveryProb float64) (Environment, error) {
	env := Environment{
		InfectionProb:     infectionProb,
		InfectionDuration: infectionDuration,
		RecoveryProb:      recoveryProb,
	}
	if err := env.Validate(); err != nil {
		return Environment{}, err
	}
	return env, nil
}

// Validate checks that probabilities lie in [0,1] and the duration is a
// finite non-negative number.
func (e Environment) Validate() error {
	if err := validateProbability("infection_prob", e.InfectionProb); err != nil {
		return err
	}
	if err := validateProbability("recovery_prob", e.RecoveryProb); err != nil {
		return err
	}
	if math.IsNaN(e.InfectionDuration) || math.IsInf(e.InfectionDuration, 0) || e.InfectionDuration < 0 {
		return newConfigurationError("infection_duration", "must be a finite non-negative number, got %v", e.InfectionDuration)
	}
	return nil
}

func validateProbability(field string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return newConfigurationError(field, "must be in [0, 1], got %v", p)
	}
	return nil
}
