package trace

import "sort"

// StepCounts is the S/I/R tally of one run at one step.
type StepCounts struct {
	Step        int `json:"step"`
	Susceptible int `json:"susceptible"`
	Infected    int `json:"infected"`
	Recovered   int `json:"recovered"`
}

// Total returns the population size the counts cover.
func (c StepCounts) Total() int {
	return c.Susceptible + c.Infected + c.Recovered
}

// PeakStats holds the maximum of each compartment over a run and the first
// step at which it was reached.
type PeakStats struct {
	RunID               int `json:"run_id"`
	PeakSusceptible     int `json:"num_peak_susceptible"`
	PeakSusceptibleStep int `json:"peak_susceptible_step"`
	PeakInfected        int `json:"num_peak_infected"`
	PeakInfectedStep    int `json:"peak_infected_step"`
	PeakRecovered       int `json:"num_peak_recovered"`
	PeakRecoveredStep   int `json:"peak_recovered_step"`
}

// RunSummary aggregates the logs of one run.
type RunSummary struct {
	RunID      int          `json:"run_id"`
	Counts     []StepCounts `json:"counts"` // ordered by step
	Peaks      PeakStats    `json:"peaks"`
	Infections int          `json:"infections"` // number of infection events
}

// Summarize computes per-run step counts and peaks from a Log.
// Runs are returned ordered by RunID. Safe for nil or empty logs.
func Summarize(l *Log) []RunSummary {
	if l == nil {
		return []RunSummary{}
	}

	type runAcc struct {
		counts     map[int]*StepCounts
		infections int
	}
	runs := make(map[int]*runAcc)
	acc := func(runID int) *runAcc {
		r, ok := runs[runID]
		if !ok {
			r = &runAcc{counts: make(map[int]*StepCounts)}
			runs[runID] = r
		}
		return r
	}

	for _, s := range l.States {
		r := acc(s.RunID)
		c, ok := r.counts[s.Step]
		if !ok {
			c = &StepCounts{Step: s.Step}
			r.counts[s.Step] = c
		}
		switch s.State {
		case StateSusceptible:
			c.Susceptible++
		case StateInfected:
			c.Infected++
		case StateRecovered:
			c.Recovered++
		}
	}
	for _, e := range l.Infections {
		acc(e.RunID).infections++
	}

	runIDs := make([]int, 0, len(runs))
	for id := range runs {
		runIDs = append(runIDs, id)
	}
	sort.Ints(runIDs)

	summaries := make([]RunSummary, 0, len(runIDs))
	for _, id := range runIDs {
		r := runs[id]
		counts := make([]StepCounts, 0, len(r.counts))
		for _, c := range r.counts {
			counts = append(counts, *c)
		}
		sort.Slice(counts, func(i, j int) bool { return counts[i].Step < counts[j].Step })
		summaries = append(summaries, RunSummary{
			RunID:      id,
			Counts:     counts,
			Peaks:      peaks(id, counts),
			Infections: r.infections,
		})
	}
	return summaries
}

// peaks finds the first step at which each compartment reached its maximum.
func peaks(runID int, counts []StepCounts) PeakStats {
	p := PeakStats{RunID: runID, PeakSusceptibleStep: -1, PeakInfectedStep: -1, PeakRecoveredStep: -1}
	for _, c := range counts {
		if p.PeakSusceptibleStep < 0 || c.Susceptible > p.PeakSusceptible {
			p.PeakSusceptible, p.PeakSusceptibleStep = c.Susceptible, c.Step
		}
		if p.PeakInfectedStep < 0 || c.Infected > p.PeakInfected {
			p.PeakInfected, p.PeakInfectedStep = c.Infected, c.Step
		}
		if p.PeakRecoveredStep < 0 || c.Recovered > p.PeakRecovered {
			p.PeakRecovered, p.PeakRecoveredStep = c.Recovered, c.Step
		}
	}
	return p
}

// Peaks extracts the PeakStats of every summary.
func Peaks(summaries []RunSummary) []PeakStats {
	out := make([]PeakStats, len(summaries))
	for i, s := range summaries {
		out[i] = s.Peaks
	}
	return out
}
