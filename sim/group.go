package sim

// Default group sizing.
const (
	DefaultGroupSizeMean = 10.0
	DefaultMinGroupSize  = 3
	DefaultMaxGroupSize  = 30
)

// ContactGroup is one cluster of the population partition for a single step.
// Members holds agent ids; groups are rebuilt every step and never shared
// across steps.
type ContactGroup struct {
	ID      int
	Members []int
}

// GroupSizing parameterizes the clamped exponential group-size distribution.
type GroupSizing struct {
	Mean float64 // mean of the exponential draw (rate = 1/Mean)
	Min  int     // lower clamp; only the trailing remainder group may be smaller
	Max  int     // upper clamp
}

// DefaultGroupSizing returns the sizing used when no configuration overrides it.
func DefaultGroupSizing() GroupSizing {
	return GroupSizing{Mean: DefaultGroupSizeMean, Min: DefaultMinGroupSize, Max: DefaultMaxGroupSize}
}

// sample draws one group size before capping at the remaining population.
func (g GroupSizing) sample(rnd *RandomSource) int {
	draw := rnd.Exp(1 / g.Mean)
	if draw >= float64(g.Max) {
		return g.Max
	}
	return max(int(draw), g.Min)
}

// FormGroups shuffles order in place and cuts it into contiguous groups.
// Sizes are drawn from sizing and capped at the number of agents left, so the
// final group absorbs any remainder smaller than sizing.Min. The result covers
// every id of order exactly once.
func FormGroups(order []int, sizing GroupSizing, rnd *RandomSource) []ContactGroup {
	rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	groups := make([]ContactGroup, 0, len(order)/max(sizing.Min, 1)+1)
	for start := 0; start < len(order); {
		size := min(sizing.sample(rnd), len(order)-start)
		members := make([]int, size)
		copy(members, order[start:start+size])
		groups = append(groups, ContactGroup{ID: len(groups), Members: members})
		start += size
	}
	return groups
}
