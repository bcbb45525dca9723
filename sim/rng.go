package sim

import (
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical logs.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// ForRun derives the key of run runID within a batch: base seed + runID.
func (k SimulationKey) ForRun(runID int) SimulationKey {
	return k + SimulationKey(runID)
}

// === RandomSource ===

// RandomSource is the only source of randomness for a simulation run.
// Every stochastic decision receives it explicitly; nothing in this module
// reads the package-level math/rand generator.
//
// Thread-safety: NOT thread-safe. Owned by exactly one SimulationRun.
type RandomSource struct {
	key SimulationKey
	rng *rand.Rand
}

// NewRandomSource creates a RandomSource seeded from key.
func NewRandomSource(key SimulationKey) *RandomSource {
	return &RandomSource{
		key: key,
		rng: rand.New(rand.NewSource(int64(key))),
	}
}

// Key returns the SimulationKey used to seed this source.
func (r *RandomSource) Key() SimulationKey {
	return r.key
}

// Float64 returns a uniform float in [0,1).
func (r *RandomSource) Float64() float64 {
	return r.rng.Float64()
}

// IntInRange returns a uniform integer in the closed range [lo, hi].
// Panics if hi < lo.
func (r *RandomSource) IntInRange(lo, hi int) int {
	if hi < lo {
		panic("sim: IntInRange called with hi < lo")
	}
	return lo + r.rng.Intn(hi-lo+1)
}

// Exp returns an exponentially distributed float with the given rate (1/mean).
func (r *RandomSource) Exp(rate float64) float64 {
	return r.rng.ExpFloat64() / rate
}

// Shuffle pseudo-randomizes the order of n elements using swap (Fisher-Yates).
func (r *RandomSource) Shuffle(n int, swap func(i, j int)) {
	r.rng.Shuffle(n, swap)
}

// Pick returns a uniformly chosen element of items. Panics on an empty slice.
func Pick[T any](r *RandomSource, items []T) T {
	if len(items) == 0 {
		panic("sim: Pick called with no items")
	}
	return items[r.rng.Intn(len(items))]
}
