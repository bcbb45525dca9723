package trace

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 3},
		{90, 4.6},
		{100, 5},
	}
	for _, tt := range tests {
		if got := Percentile(data, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestEnsemble_NoRuns(t *testing.T) {
	stats := Ensemble(nil)
	if stats.Runs != 0 || stats.PeakInfected != (Distribution{}) {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestEnsemble_AcrossRuns(t *testing.T) {
	// GIVEN three runs with peaks 2, 4, 9 and final sizes 3, 5, 10
	summaries := []RunSummary{
		{RunID: 0, Peaks: PeakStats{PeakInfected: 4, PeakInfectedStep: 2}, Counts: []StepCounts{{Step: 5, Infected: 1, Recovered: 4}}},
		{RunID: 1, Peaks: PeakStats{PeakInfected: 2, PeakInfectedStep: 1}, Counts: []StepCounts{{Step: 5, Recovered: 3}}},
		{RunID: 2, Peaks: PeakStats{PeakInfected: 9, PeakInfectedStep: 3}, Counts: []StepCounts{{Step: 5, Infected: 2, Recovered: 8}}},
	}

	// WHEN aggregated
	stats := Ensemble(summaries)

	// THEN each distribution reflects the three runs
	if stats.Runs != 3 {
		t.Fatalf("expected 3 runs, got %d", stats.Runs)
	}
	if stats.PeakInfected.Mean != 5 || stats.PeakInfected.Min != 2 || stats.PeakInfected.Max != 9 || stats.PeakInfected.P50 != 4 {
		t.Errorf("unexpected peak distribution %+v", stats.PeakInfected)
	}
	if stats.FinalSize.Mean != 6 || stats.FinalSize.P50 != 5 {
		t.Errorf("unexpected final size distribution %+v", stats.FinalSize)
	}
	if stats.PeakInfectedStep.Max != 3 {
		t.Errorf("unexpected peak step distribution %+v", stats.PeakInfectedStep)
	}
}
