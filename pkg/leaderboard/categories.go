package leaderboard

import (
	"math"
	"time"

	"github.com/relaymetrics/relay-monitor/pkg/operator"
	"github.com/relaymetrics/relay-monitor/pkg/rarity"
	"github.com/relaymetrics/relay-monitor/pkg/types"
)

type Category string

const (
	CategoryBandwidth          Category = "bandwidth"
	CategoryConsensusWeight    Category = "consensus_weight"
	CategoryExitAuthority      Category = "exit_authority"
	CategoryGuardAuthority     Category = "guard_authority"
	CategoryExitOperators      Category = "exit_operators"
	CategoryGuardOperators     Category = "guard_operators"
	CategoryRelayCount         Category = "relay_count"
	CategoryPlatformDiversity  Category = "platform_diversity"
	CategoryNonEULeaders       Category = "non_eu_leaders"
	CategoryFrontierBuilders   Category = "frontier_builders"
	CategoryIPv4Leaders        Category = "ipv4_leaders"
	CategoryIPv6Leaders        Category = "ipv6_leaders"
	CategoryBandwidthServed    Category = "bandwidth_served"
	CategoryMostDiverse        Category = "most_diverse"
	CategoryNetworkVeterans    Category = "network_veterans"
	CategoryReliabilityMasters Category = "reliability_masters"
	CategoryLegacyTitans       Category = "legacy_titans"
)

type Family string

const (
	FamilyAdditive    Family = "additive"
	FamilyDiversity   Family = "diversity"
	FamilyVeteran     Family = "veteran"
	FamilyReliability Family = "reliability"
)

// Diversity weights.
const (
	countryWeight  = 2.0
	platformWeight = 1.5
	asWeight       = 1.0
)

// Format selects how a score is rendered.
type Format int

const (
	FormatCount Format = iota
	FormatBandwidth
	FormatFraction
	FormatPercent
	FormatPoints
)

// scoreFunc returns the operator's score and whether it is eligible.
type scoreFunc func(in *Inputs, op *operator.Operator) (float64, bool)

// Definition is one leaderboard category.
type Definition struct {
	Category Category
	Family   Family
	Title    string
	Format   Format

	score    scoreFunc
	tieBreak func(op *operator.Operator) string
}

// additive builds a category summing a field over member relays. Operators
// scoring zero are left out, so the leaderboard's Total counts only operators
// with a positive score.
func additive(category Category, title string, format Format, score scoreFunc) Definition {
	return Definition{
		Category: category,
		Family:   FamilyAdditive,
		Title:    title,
		Format:   format,
		score: func(in *Inputs, op *operator.Operator) (float64, bool) {
			value, ok := score(in, op)
			return value, ok && value > 0
		},
		tieBreak: earlierFirstSeen,
	}
}

func count(f func(in *Inputs, op *operator.Operator) int) scoreFunc {
	return func(in *Inputs, op *operator.Operator) (float64, bool) {
		return float64(f(in, op)), true
	}
}

// Definitions returns every category in display order.
func Definitions() []Definition {
	return []Definition{
		additive(CategoryBandwidth, "Bandwidth Contributed", FormatBandwidth, func(_ *Inputs, op *operator.Operator) (float64, bool) {
			return float64(op.Totals.ObservedBandwidth), true
		}),
		additive(CategoryConsensusWeight, "Most Consensus Weight", FormatFraction, func(_ *Inputs, op *operator.Operator) (float64, bool) {
			return op.Totals.ConsensusWeight, true
		}),
		additive(CategoryExitAuthority, "Exit Authority", FormatFraction, func(_ *Inputs, op *operator.Operator) (float64, bool) {
			return op.Totals.ExitConsensusWeight, true
		}),
		additive(CategoryGuardAuthority, "Guard Authority", FormatFraction, func(_ *Inputs, op *operator.Operator) (float64, bool) {
			return op.Totals.GuardConsensusWeight, true
		}),
		additive(CategoryExitOperators, "Exit Operators", FormatCount, count(func(_ *Inputs, op *operator.Operator) int {
			return op.Totals.FlagCounts[types.FlagExit]
		})),
		additive(CategoryGuardOperators, "Guard Operators", FormatCount, count(func(_ *Inputs, op *operator.Operator) int {
			return op.Totals.FlagCounts[types.FlagGuard]
		})),
		additive(CategoryRelayCount, "Most Relays", FormatCount, count(func(_ *Inputs, op *operator.Operator) int {
			return op.RelayCount()
		})),
		additive(CategoryPlatformDiversity, "Platform Diversity", FormatCount, count(func(_ *Inputs, op *operator.Operator) int {
			return op.Totals.NonLinuxRelays
		})),
		additive(CategoryNonEULeaders, "Non-EU Leaders", FormatCount, count(func(in *Inputs, op *operator.Operator) int {
			return in.nonEURelays(op)
		})),
		additive(CategoryFrontierBuilders, "Frontier Builders", FormatCount, count(func(in *Inputs, op *operator.Operator) int {
			if in.Rarity == nil {
				return 0
			}
			return rarity.FrontierContribution(in.Rarity, op.Relays)
		})),
		additive(CategoryIPv4Leaders, "IPv4 Address Leaders", FormatCount, count(func(_ *Inputs, op *operator.Operator) int {
			return len(op.Totals.IPv4Addresses)
		})),
		additive(CategoryIPv6Leaders, "IPv6 Address Leaders", FormatCount, count(func(_ *Inputs, op *operator.Operator) int {
			return len(op.Totals.IPv6Addresses)
		})),
		additive(CategoryBandwidthServed, "Bandwidth Served", FormatBandwidth, servedBandwidth),
		{
			Category: CategoryMostDiverse,
			Family:   FamilyDiversity,
			Title:    "Most Diverse Operators",
			Format:   FormatPoints,
			score:    diversity,
			tieBreak: higherRelayCount,
		},
		{
			Category: CategoryNetworkVeterans,
			Family:   FamilyVeteran,
			Title:    "Network Veterans",
			Format:   FormatPoints,
			score:    veteran,
			tieBreak: earlierFirstSeen,
		},
		{
			Category: CategoryReliabilityMasters,
			Family:   FamilyReliability,
			Title:    "Reliability Masters",
			Format:   FormatPercent,
			score:    reliabilityScore(types.Period6Months),
			tieBreak: earlierFirstSeen,
		},
		{
			Category: CategoryLegacyTitans,
			Family:   FamilyReliability,
			Title:    "Legacy Titans",
			Format:   FormatPercent,
			score:    reliabilityScore(types.Period5Years),
			tieBreak: earlierFirstSeen,
		},
	}
}

// DiversityScore weighs distinct countries, platforms and autonomous systems.
func DiversityScore(countries, platforms, ases int) float64 {
	return float64(countries)*countryWeight + float64(platforms)*platformWeight + float64(ases)*asWeight
}

func diversity(_ *Inputs, op *operator.Operator) (float64, bool) {
	return DiversityScore(len(op.Totals.Countries), len(op.Totals.Platforms), len(op.Totals.ASes)), true
}

// VeteranScaleFactor is the multiplier applied to an operator's age for its
// relay count.
func VeteranScaleFactor(relays int) float64 {
	switch {
	case relays >= 300:
		return 1.3
	case relays >= 200:
		return 1.2
	case relays >= 100:
		return 1.15
	case relays >= 50:
		return 1.1
	case relays >= 10:
		return 1.05
	default:
		return 1.0
	}
}

// VeteranDays is the number of whole days from firstSeen to now, never
// negative.
func VeteranDays(firstSeen, now time.Time) int {
	days := int(math.Floor(now.Sub(firstSeen).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

func veteran(in *Inputs, op *operator.Operator) (float64, bool) {
	firstSeen, ok := op.Totals.FirstSeen.Get()
	if !ok {
		return 0, false
	}
	return float64(VeteranDays(firstSeen, in.Now)) * VeteranScaleFactor(op.RelayCount()), true
}

func reliabilityScore(period types.Period) scoreFunc {
	return func(in *Inputs, op *operator.Operator) (float64, bool) {
		if in.Reliability == nil {
			return 0, false
		}
		uptime, ok := in.Reliability.Uptime(op.ID, period)
		if !ok || !uptime.Eligible {
			return 0, false
		}
		return uptime.Average.Get()
	}
}

func servedBandwidth(in *Inputs, op *operator.Operator) (float64, bool) {
	if in.History == nil {
		return 0, false
	}
	total, found := 0.0, false
	for _, relay := range op.Relays {
		if served, ok := in.History.ServedBandwidth(relay.Fingerprint); ok {
			total += served
			found = true
		}
	}
	return total, found
}
