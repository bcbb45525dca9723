package trace

import (
	"math"
	"sort"
)

// Distribution summarizes one quantity across the runs of a batch.
type Distribution struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	P50  float64 `json:"p50"`
	P90  float64 `json:"p90"`
	Max  float64 `json:"max"`
}

// EnsembleStats describes how a batch's runs vary.
type EnsembleStats struct {
	Runs             int          `json:"runs"`
	PeakInfected     Distribution `json:"peak_infected"`
	PeakInfectedStep Distribution `json:"peak_infected_step"`
	FinalSize        Distribution `json:"final_size"` // agents ever infected by the last step
}

// Ensemble computes EnsembleStats over summaries. Zero value for no runs.
func Ensemble(summaries []RunSummary) EnsembleStats {
	stats := EnsembleStats{Runs: len(summaries)}
	if len(summaries) == 0 {
		return stats
	}
	peaks := make([]float64, len(summaries))
	peakSteps := make([]float64, len(summaries))
	finals := make([]float64, len(summaries))
	for i, s := range summaries {
		peaks[i] = float64(s.Peaks.PeakInfected)
		peakSteps[i] = float64(s.Peaks.PeakInfectedStep)
		if len(s.Counts) > 0 {
			last := s.Counts[len(s.Counts)-1]
			finals[i] = float64(last.Infected + last.Recovered)
		}
	}
	stats.PeakInfected = distribution(peaks)
	stats.PeakInfectedStep = distribution(peakSteps)
	stats.FinalSize = distribution(finals)
	return stats
}

// distribution sorts data in place and summarizes it.
func distribution(data []float64) Distribution {
	sort.Float64s(data)
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return Distribution{
		Mean: sum / float64(len(data)),
		Min:  data[0],
		P50:  Percentile(data, 50),
		P90:  Percentile(data, 90),
		Max:  data[len(data)-1],
	}
}

// Percentile returns the p-th percentile of sorted data using linear
// interpolation between closest ranks. data must be non-empty.
func Percentile(data []float64, p float64) float64 {
	n := len(data)
	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if upperIdx >= n {
		return data[n-1]
	}
	if lowerIdx == upperIdx {
		return data[lowerIdx]
	}
	return data[lowerIdx] + (data[upperIdx]-data[lowerIdx])*(rank-float64(lowerIdx))
}
