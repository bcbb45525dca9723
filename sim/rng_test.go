package sim

import (
	"math"
	"sort"
	"testing"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"negative seed", -1},
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewSimulationKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

func TestSimulationKey_ForRun_OffsetsSeed(t *testing.T) {
	key := NewSimulationKey(42)
	for run := 0; run < 5; run++ {
		if got := key.ForRun(run); int64(got) != 42+int64(run) {
			t.Errorf("ForRun(%d) = %d, want %d", run, got, 42+run)
		}
	}
}

// === RandomSource Tests ===

func TestRandomSource_SameKey_SameSequence(t *testing.T) {
	// GIVEN two sources with the same key
	a := NewRandomSource(NewSimulationKey(7))
	b := NewRandomSource(NewSimulationKey(7))

	// WHEN the same mix of draws is made from each
	for i := 0; i < 100; i++ {
		// THEN every draw matches
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d: Float64 %v != %v", i, x, y)
		}
		if x, y := a.IntInRange(0, 9), b.IntInRange(0, 9); x != y {
			t.Fatalf("draw %d: IntInRange %d != %d", i, x, y)
		}
		if x, y := a.Exp(0.1), b.Exp(0.1); x != y {
			t.Fatalf("draw %d: Exp %v != %v", i, x, y)
		}
	}
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %d vs %d", a.Key(), b.Key())
	}
}

func TestRandomSource_DifferentKeys_DifferentSequences(t *testing.T) {
	a := NewRandomSource(NewSimulationKey(1))
	b := NewRandomSource(NewSimulationKey(2))
	same := 0
	for i := 0; i < 20; i++ {
		if a.Float64() == b.Float64() {
			same++
		}
	}
	if same == 20 {
		t.Error("sources with different keys produced identical sequences")
	}
}

func TestRandomSource_IntInRange_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi int
	}{
		{"single value", 5, 5},
		{"zero based", 0, 9},
		{"negative range", -3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRandomSource(NewSimulationKey(42))
			seen := make(map[int]bool)
			for i := 0; i < 1000; i++ {
				v := r.IntInRange(tt.lo, tt.hi)
				if v < tt.lo || v > tt.hi {
					t.Fatalf("IntInRange(%d, %d) = %d out of range", tt.lo, tt.hi, v)
				}
				seen[v] = true
			}
			if len(seen) != tt.hi-tt.lo+1 {
				t.Errorf("expected every value in [%d, %d] to appear, saw %d distinct", tt.lo, tt.hi, len(seen))
			}
		})
	}
}

func TestRandomSource_IntInRange_PanicsOnInvertedRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for hi < lo")
		}
	}()
	NewRandomSource(NewSimulationKey(1)).IntInRange(3, 2)
}

func TestRandomSource_Exp_Mean(t *testing.T) {
	// GIVEN rate 0.1 (mean 10)
	r := NewRandomSource(NewSimulationKey(42))
	const n = 100_000
	sum := 0.0
	for i := 0; i < n; i++ {
		v := r.Exp(0.1)
		if v < 0 {
			t.Fatalf("negative exponential draw %v", v)
		}
		sum += v
	}

	// THEN the sample mean is close to 10
	if mean := sum / n; math.Abs(mean-10) > 0.2 {
		t.Errorf("sample mean %v, want ~10", mean)
	}
}

func TestRandomSource_Shuffle_IsPermutation(t *testing.T) {
	r := NewRandomSource(NewSimulationKey(3))
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	r.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

	sorted := append([]int(nil), items...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			t.Fatalf("shuffle lost or duplicated elements: %v", items)
		}
	}
}

func TestPick_ReturnsMember(t *testing.T) {
	r := NewRandomSource(NewSimulationKey(11))
	items := []int{4, 8, 15}
	counts := make(map[int]int)
	for i := 0; i < 3000; i++ {
		counts[Pick(r, items)]++
	}
	for _, v := range items {
		if counts[v] < 800 {
			t.Errorf("item %d picked %d times out of 3000, want ~1000", v, counts[v])
		}
	}
	if len(counts) != len(items) {
		t.Errorf("picked values outside items: %v", counts)
	}
}

func TestPick_PanicsOnEmpty(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for empty slice")
		}
	}()
	Pick(NewRandomSource(NewSimulationKey(1)), []int{})
}
