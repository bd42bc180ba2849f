package report

import (
	"time"

	"github.com/relaymetrics/relay-monitor/pkg/intelligence"
	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/rarity"
	"github.com/relaymetrics/relay-monitor/pkg/reliability"
	"github.com/relaymetrics/relay-monitor/pkg/types"
)

// Report is everything published for one fetch cycle. A report is only
// produced when every stage succeeded.
type Report struct {
	ID          string    `json:"id"`
	Network     string    `json:"network"`
	GeneratedAt time.Time `json:"generated_at"`
	SnapshotAt  time.Time `json:"snapshot_at"`

	Relays          int            `json:"relays"`
	RejectedRelays  int            `json:"rejected_relays"`
	Operators       int            `json:"operators"`
	NoContactRelays int            `json:"no_contact_relays"`
	Degradations    map[string]int `json:"degradations"`

	Leaderboards map[leaderboard.Category]*leaderboard.Leaderboard `json:"leaderboards"`
	Metrics      *NetworkMetrics                                   `json:"metrics"`
}

// NetworkMetrics are the network-wide scalar results of a cycle.
type NetworkMetrics struct {
	Concentration *intelligence.Result                      `json:"concentration"`
	Uptime        map[types.Period]*reliability.Percentiles `json:"uptime_percentiles"`
	Outliers      []*reliability.OutlierReport              `json:"outliers"`
	RarityTiers   map[types.Country]rarity.Tier             `json:"rarity_tiers"`
	Countries     []*rarity.CountryScore                    `json:"countries"`
}

// Leaderboard returns the category's leaderboard.
func (r *Report) Leaderboard(category leaderboard.Category) (*leaderboard.Leaderboard, bool) {
	board, ok := r.Leaderboards[category]
	return board, ok
}

// Categories returns the categories present in the report in display order.
func (r *Report) Categories() []leaderboard.Category {
	var categories []leaderboard.Category
	for _, definition := range leaderboard.Definitions() {
		if _, ok := r.Leaderboards[definition.Category]; ok {
			categories = append(categories, definition.Category)
		}
	}
	return categories
}
