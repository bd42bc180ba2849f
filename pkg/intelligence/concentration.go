package intelligence

import (
	"sort"

	"github.com/relaymetrics/relay-monitor/pkg/types"
)

type RiskBand string

const (
	RiskLow    RiskBand = "low"
	RiskMedium RiskBand = "medium"
	RiskHigh   RiskBand = "high"
)

// Bands are HHI thresholds on the 0–1 scale.
type Bands struct {
	Medium float64
	High   float64
}

// Classify returns high above High, medium from Medium up to High, and low
// below Medium.
func (b Bands) Classify(hhi float64) RiskBand {
	switch {
	case hhi > b.High:
		return RiskHigh
	case hhi >= b.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Concentration summarizes how consensus weight is spread over the entities
// of one partition.
type Concentration struct {
	Partition string                   `json:"partition"`
	HHI       types.Optional[float64]  `json:"hhi"`
	Risk      types.Optional[RiskBand] `json:"risk"`
	Entities  int                      `json:"entities"`
	TopEntity types.Optional[string]   `json:"top_entity"`
	TopShare  types.Optional[float64]  `json:"top_share"`
}

// HHI is the Herfindahl-Hirschman index of weights on the 0–1 scale, where
// each share is taken against total. total may exceed the sum of weights when
// some weight belongs to no entity. Shares are summed in key order so the
// result is the same for every run over the same weights.
func HHI(weights map[string]float64, total float64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	hhi := 0.0
	for _, key := range sortedKeys(weights) {
		share := weights[key] / total
		hhi += share * share
	}
	return hhi, true
}

func sortedKeys(weights map[string]float64) []string {
	keys := make([]string, 0, len(weights))
	for key := range weights {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Gini is the Gini coefficient of values. It is absent for an empty input or
// when every value is zero. A single holder with weight is maximal
// inequality.
func Gini(values []float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	if n == 1 {
		if values[0] <= 0 {
			return 0, false
		}
		return 1, true
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum, weighted := 0.0, 0.0
	for i, value := range sorted {
		sum += value
		weighted += float64(i+1) * value
	}
	if sum <= 0 {
		return 0, false
	}
	return (2*weighted - float64(n+1)*sum) / (float64(n) * sum), true
}

func concentration(partition string, weights map[string]float64, total float64, bands Bands) *Concentration {
	c := &Concentration{
		Partition: partition,
		HHI:       types.None[float64](),
		Risk:      types.None[RiskBand](),
		Entities:  len(weights),
		TopEntity: types.None[string](),
		TopShare:  types.None[float64](),
	}
	hhi, ok := HHI(weights, total)
	if !ok {
		return c
	}
	c.HHI = types.Some(hhi)
	c.Risk = types.Some(bands.Classify(hhi))

	top := ""
	for _, key := range sortedKeys(weights) {
		if top == "" || weights[key] > weights[top] {
			top = key
		}
	}
	if top != "" {
		c.TopEntity = types.Some(top)
		c.TopShare = types.Some(weights[top] / total)
	}
	return c
}
