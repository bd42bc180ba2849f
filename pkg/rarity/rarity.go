package rarity

import (
	"sort"

	"github.com/relaymetrics/relay-monitor/pkg/config"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"go.uber.org/zap"
)

type Tier string

const (
	TierLegendary Tier = "legendary"
	TierEpic      Tier = "epic"
	TierRare      Tier = "rare"
	TierEmerging  Tier = "emerging"
	TierCommon    Tier = "common"
)

// Factor weights of the rarity score.
const (
	relayCountWeight   = 4
	networkPctWeight   = 3
	geopoliticalWeight = 2
	regionalWeight     = 1
)

// TierFor maps a rarity score to its tier label.
func TierFor(score int) Tier {
	switch {
	case score >= 15:
		return TierLegendary
	case score >= 10:
		return TierEpic
	case score >= 6:
		return TierRare
	case score >= 3:
		return TierEmerging
	default:
		return TierCommon
	}
}

type Factors struct {
	RelayCount   int `json:"relay_count"`
	NetworkPct   int `json:"network_pct"`
	Geopolitical int `json:"geopolitical"`
	Regional     int `json:"regional"`
}

// Score is the weighted rarity score of the factors.
func (f Factors) Score() int {
	return f.RelayCount*relayCountWeight +
		f.NetworkPct*networkPctWeight +
		f.Geopolitical*geopoliticalWeight +
		f.Regional*regionalWeight
}

type CountryScore struct {
	Country        types.Country `json:"country"`
	Relays         int           `json:"relays"`
	NetworkPercent float64       `json:"network_percent"`
	Factors        Factors       `json:"factors"`
	Score          int           `json:"score"`
	Tier           Tier          `json:"tier"`
	Rare           bool          `json:"rare"`
}

// Result holds the rarity of every known country present in one snapshot.
type Result struct {
	// Countries is ordered by score descending, then country code.
	Countries   []*CountryScore `json:"countries"`
	TotalRelays int             `json:"total_relays"`

	byCountry map[types.Country]*CountryScore
}

func (r *Result) Get(country types.Country) (*CountryScore, bool) {
	score, ok := r.byCountry[country]
	return score, ok
}

// IsRare reports whether the country scored at or above the cutoff. Unknown
// countries are never rare.
func (r *Result) IsRare(country types.Country) bool {
	score, ok := r.byCountry[country]
	return ok && score.Rare
}

// TiersByCountry returns the tier label of every classified country.
func (r *Result) TiersByCountry() map[types.Country]Tier {
	tiers := make(map[types.Country]Tier, len(r.Countries))
	for _, score := range r.Countries {
		tiers[score.Country] = score.Tier
	}
	return tiers
}

// RareCountries returns the rare country codes in result order.
func (r *Result) RareCountries() []types.Country {
	var countries []types.Country
	for _, score := range r.Countries {
		if score.Rare {
			countries = append(countries, score.Country)
		}
	}
	return countries
}

type Classifier struct {
	logger *zap.Logger
	cutoff int

	geopolitical map[types.Country]int
	regional     map[types.Country]int
}

func NewClassifier(logger *zap.Logger, tables *config.ClassificationTables, cutoff int) *Classifier {
	c := &Classifier{
		logger:       logger,
		cutoff:       cutoff,
		geopolitical: make(map[types.Country]int),
		regional:     make(map[types.Country]int),
	}
	if tables == nil {
		return c
	}
	// Lower factors first so that a country listed twice keeps its highest.
	assign(c.geopolitical, tables.Developing, 1)
	assign(c.geopolitical, tables.IslandLandlockedDeveloping, 2)
	assign(c.geopolitical, tables.ConflictAuthoritarian, 3)
	assign(c.regional, tables.EmergingRegions, 1)
	assign(c.regional, tables.UnderrepresentedRegions, 2)
	return c
}

func assign(factors map[types.Country]int, countries []string, factor int) {
	for _, country := range countries {
		factors[types.Country(country)] = factor
	}
}

// Factors computes the four rarity factors for a country holding relays of
// total network relays.
func (c *Classifier) Factors(country types.Country, relays, total int) Factors {
	return Factors{
		RelayCount:   relayCountFactor(relays),
		NetworkPct:   networkPctFactor(networkPercent(relays, total)),
		Geopolitical: c.geopolitical[country],
		Regional:     c.regional[country],
	}
}

// Score classifies a single country.
func (c *Classifier) Score(country types.Country, relays, total int) *CountryScore {
	factors := c.Factors(country, relays, total)
	score := factors.Score()
	return &CountryScore{
		Country:        country,
		Relays:         relays,
		NetworkPercent: networkPercent(relays, total),
		Factors:        factors,
		Score:          score,
		Tier:           TierFor(score),
		Rare:           score >= c.cutoff,
	}
}

// Classify scores every known country present in records. Relays in the
// unknown bucket count toward the network total only.
func (c *Classifier) Classify(records []*types.RelayRecord) *Result {
	counts := make(map[types.Country]int)
	for _, record := range records {
		if record.Country.Known() {
			counts[record.Country]++
		}
	}

	result := &Result{
		Countries:   make([]*CountryScore, 0, len(counts)),
		TotalRelays: len(records),
		byCountry:   make(map[types.Country]*CountryScore, len(counts)),
	}
	for country, relays := range counts {
		score := c.Score(country, relays, len(records))
		result.Countries = append(result.Countries, score)
		result.byCountry[country] = score
	}
	sort.Slice(result.Countries, func(i, j int) bool {
		a, b := result.Countries[i], result.Countries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Country < b.Country
	})

	c.logger.Sugar().Debugw("classified countries", "countries", len(result.Countries), "rare", len(result.RareCountries()))
	return result
}

// FrontierContribution counts the distinct relays among relays that are
// located in a rare country.
func FrontierContribution(result *Result, relays []*types.RelayRecord) int {
	seen := make(map[types.Fingerprint]struct{}, len(relays))
	for _, relay := range relays {
		if !result.IsRare(relay.Country) {
			continue
		}
		seen[relay.Fingerprint] = struct{}{}
	}
	return len(seen)
}

func relayCountFactor(relays int) int {
	if relays >= 7 {
		return 0
	}
	return 7 - relays
}

func networkPercent(relays, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(relays) / float64(total) * 100
}

func networkPctFactor(pct float64) int {
	switch {
	case pct < 0.05:
		return 6
	case pct < 0.1:
		return 4
	case pct < 0.2:
		return 2
	default:
		return 0
	}
}
