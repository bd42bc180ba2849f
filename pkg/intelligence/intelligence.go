package intelligence

import (
	"sort"

	"github.com/relaymetrics/relay-monitor/pkg/operator"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"go.uber.org/zap"
)

const (
	PartitionCountry  = "country"
	PartitionAS       = "as"
	PartitionOperator = "operator"
)

type Config struct {
	Bands         Bands
	Jurisdictions map[string][]string
	// SPOFShare is the share of total consensus weight above which a single
	// AS is flagged critical.
	SPOFShare float64
}

type Jurisdiction struct {
	Name      string          `json:"name"`
	Countries []types.Country `json:"countries"`
	Relays    int             `json:"relays"`
	// ConsensusWeight is the summed consensus weight fraction of relays in
	// member countries.
	ConsensusWeight float64                 `json:"consensus_weight"`
	Share           types.Optional[float64] `json:"share"`
}

// SinglePointOfFailure is an AS holding more than the configured share of
// total consensus weight.
type SinglePointOfFailure struct {
	AS        types.ASN `json:"as"`
	Share     float64   `json:"share"`
	Relays    int       `json:"relays"`
	Operators int       `json:"operators"`
	Critical  bool      `json:"critical"`
}

type Result struct {
	TotalConsensusWeight float64 `json:"total_consensus_weight"`

	Country  *Concentration `json:"country"`
	AS       *Concentration `json:"as"`
	Operator *Concentration `json:"operator"`

	// Gini is taken over per-operator consensus weight, with relays lacking
	// contact information counted as their own operators.
	Gini types.Optional[float64] `json:"gini"`

	Jurisdictions []*Jurisdiction         `json:"jurisdictions"`
	SPOFs         []*SinglePointOfFailure `json:"spofs"`
}

type Analyzer struct {
	logger *zap.Logger
	config Config
}

func NewAnalyzer(logger *zap.Logger, config Config) *Analyzer {
	return &Analyzer{
		logger: logger,
		config: config,
	}
}

// Analyze computes network-wide concentration statistics over every relay in
// the resolution.
func (a *Analyzer) Analyze(resolution *operator.Resolution) *Result {
	logger := a.logger.Sugar()

	byCountry := make(map[string]float64)
	byAS := make(map[string]float64)
	byOperator := make(map[string]float64)
	relaysByCountry := make(map[types.Country]int)
	relaysByAS := make(map[types.ASN]int)
	operatorsByAS := make(map[types.ASN]map[string]struct{})
	total := 0.0

	add := func(owner string, relay *types.RelayRecord) {
		weight := relay.ConsensusWeight
		total += weight
		byOperator[owner] += weight
		if relay.Country.Known() {
			byCountry[string(relay.Country)] += weight
			relaysByCountry[relay.Country]++
		}
		if relay.AS.Known() {
			byAS[string(relay.AS)] += weight
			relaysByAS[relay.AS]++
			if operatorsByAS[relay.AS] == nil {
				operatorsByAS[relay.AS] = make(map[string]struct{})
			}
			operatorsByAS[relay.AS][owner] = struct{}{}
		}
	}
	for _, op := range resolution.Operators {
		for _, relay := range op.Relays {
			add(op.ID, relay)
		}
	}
	for _, relay := range resolution.NoContact {
		add(relay.Fingerprint, relay)
	}

	result := &Result{
		TotalConsensusWeight: total,
		Country:              concentration(PartitionCountry, byCountry, total, a.config.Bands),
		AS:                   concentration(PartitionAS, byAS, total, a.config.Bands),
		Operator:             concentration(PartitionOperator, byOperator, total, a.config.Bands),
		Gini:                 types.None[float64](),
	}

	weights := make([]float64, 0, len(byOperator))
	for _, weight := range byOperator {
		weights = append(weights, weight)
	}
	if gini, ok := Gini(weights); ok {
		result.Gini = types.Some(gini)
	}

	result.Jurisdictions = a.jurisdictions(byCountry, relaysByCountry, total)
	result.SPOFs = a.singlePointsOfFailure(byAS, relaysByAS, operatorsByAS, total)

	logger.Debugw("analyzed concentration", "totalWeight", total, "gini", result.Gini, "spofs", len(result.SPOFs))
	return result
}

func (a *Analyzer) jurisdictions(weights map[string]float64, relays map[types.Country]int, total float64) []*Jurisdiction {
	names := make([]string, 0, len(a.config.Jurisdictions))
	for name := range a.config.Jurisdictions {
		names = append(names, name)
	}
	sort.Strings(names)

	jurisdictions := make([]*Jurisdiction, 0, len(names))
	for _, name := range names {
		jurisdiction := &Jurisdiction{
			Name:  name,
			Share: types.None[float64](),
		}
		for _, code := range a.config.Jurisdictions[name] {
			country := types.Country(code)
			jurisdiction.Countries = append(jurisdiction.Countries, country)
			jurisdiction.ConsensusWeight += weights[code]
			jurisdiction.Relays += relays[country]
		}
		if total > 0 {
			jurisdiction.Share = types.Some(jurisdiction.ConsensusWeight / total)
		}
		jurisdictions = append(jurisdictions, jurisdiction)
	}
	return jurisdictions
}

func (a *Analyzer) singlePointsOfFailure(weights map[string]float64, relays map[types.ASN]int, operators map[types.ASN]map[string]struct{}, total float64) []*SinglePointOfFailure {
	if total <= 0 {
		return nil
	}
	var spofs []*SinglePointOfFailure
	for as, weight := range weights {
		share := weight / total
		if share <= a.config.SPOFShare {
			continue
		}
		asn := types.ASN(as)
		spofs = append(spofs, &SinglePointOfFailure{
			AS:        asn,
			Share:     share,
			Relays:    relays[asn],
			Operators: len(operators[asn]),
			Critical:  true,
		})
	}
	sort.Slice(spofs, func(i, j int) bool {
		if spofs[i].Share != spofs[j].Share {
			return spofs[i].Share > spofs[j].Share
		}
		return spofs[i].AS < spofs[j].AS
	})
	return spofs
}
