package reliability

import (
	"math"
	"sort"
)

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev is the standard deviation of values around mu, dividing by n.
func populationStdDev(values []float64, mu float64) float64 {
	sum := 0.0
	for _, v := range values {
		d := v - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// percentRankBelow returns the share (0–100) of values strictly lower than v.
// sorted must be ascending.
func percentRankBelow(sorted []float64, v float64) float64 {
	below := sort.SearchFloat64s(sorted, v)
	return float64(below) / float64(len(sorted)) * 100
}
