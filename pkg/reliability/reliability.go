package reliability

import (
	"fmt"
	"math"
	"sort"

	"github.com/relaymetrics/relay-monitor/pkg/operator"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"go.uber.org/zap"
)

// NetworkPercentileRanks are the percentiles reported for network-wide uptime.
var NetworkPercentileRanks = []int{5, 25, 50, 75, 90, 95, 99}

// matchEpsilon absorbs float error when comparing against the match tolerance.
const matchEpsilon = 1e-9

type Config struct {
	// MinRelays is the exclusive lower bound on member relays with at least
	// one valid uptime sample for an operator to be eligible for reliability
	// rankings.
	MinRelays      int
	OutlierSigma   float64
	MatchTolerance float64
}

// OperatorUptime is an operator's mean uptime over one period.
type OperatorUptime struct {
	OperatorID     types.OperatorID `json:"operator_id"`
	Period         types.Period     `json:"period"`
	Average        types.Percent    `json:"average"`
	RelaysWithData int              `json:"relays_with_data"`
	// RelaysSampled counts member relays with a valid sample in any period.
	RelaysSampled int  `json:"relays_sampled"`
	Eligible      bool `json:"eligible"`
	// Percentile is the share of eligible operators with a strictly lower
	// average. Absent for ineligible operators.
	Percentile types.Percent `json:"percentile"`
}

type Outlier struct {
	Fingerprint types.Fingerprint `json:"fingerprint"`
	Nickname    string            `json:"nickname"`
	Uptime      float64           `json:"uptime"`
	ZScore      float64           `json:"z_score"`
}

// OutlierReport lists an operator's relays whose uptime deviates from the
// operator mean by at least the configured number of standard deviations.
// Applicable is false when fewer than two relays have data.
type OutlierReport struct {
	OperatorID      types.OperatorID `json:"operator_id"`
	Period          types.Period     `json:"period"`
	Applicable      bool             `json:"applicable"`
	Mean            types.Percent    `json:"mean"`
	StdDev          types.Percent    `json:"std_dev"`
	Underperforming []Outlier        `json:"underperforming"`
	Exceptional     []Outlier        `json:"exceptional"`
}

func (r *OutlierReport) Count() int {
	return len(r.Underperforming) + len(r.Exceptional)
}

// FlagUptime is the flag-specific uptime surfaced next to a relay's overall
// uptime.
type FlagUptime struct {
	Flag           types.Optional[types.Flag] `json:"flag"`
	Value          types.Percent              `json:"value"`
	Overall        types.Percent              `json:"overall"`
	MatchesOverall bool                       `json:"matches_overall"`
}

// Display renders the flag uptime the way it is shown to readers.
func (f *FlagUptime) Display() string {
	flag, ok := f.Flag.Get()
	if !ok || !f.Value.Valid() {
		return "n/a"
	}
	if f.MatchesOverall {
		return "matches overall"
	}
	return flag + " " + formatPercent(f.Value)
}

type Percentiles struct {
	Period types.Period          `json:"period"`
	Relays int                   `json:"relays"`
	Mean   types.Percent         `json:"mean"`
	Values map[int]types.Percent `json:"values"`
}

func (p *Percentiles) Get(rank int) types.Percent {
	return p.Values[rank]
}

type Result struct {
	Operators map[types.OperatorID]map[types.Period]*OperatorUptime `json:"operators"`
	// Outliers holds every report with at least one outlier, ordered by
	// operator id then period.
	Outliers []*OutlierReport                                   `json:"outliers"`
	Network  map[types.Period]*Percentiles                      `json:"network"`
	Relays   map[types.Fingerprint]map[types.Period]*FlagUptime `json:"-"`

	outlierReports map[types.OperatorID]map[types.Period]*OutlierReport
}

// Uptime returns the operator's uptime for the period.
func (r *Result) Uptime(id types.OperatorID, period types.Period) (*OperatorUptime, bool) {
	uptime, ok := r.Operators[id][period]
	return uptime, ok
}

// OutlierReport returns the operator's outlier report for the period,
// including reports without outliers.
func (r *Result) OutlierReport(id types.OperatorID, period types.Period) (*OutlierReport, bool) {
	report, ok := r.outlierReports[id][period]
	return report, ok
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

// Analyze computes operator averages, eligibility and percentiles, outliers,
// and network-wide percentiles. records is the full set of relays including
// those without contact information.
func (a *Analyzer) Analyze(resolution *operator.Resolution, records []*types.RelayRecord) *Result {
	logger := a.logger.Sugar()

	result := &Result{
		Operators:      make(map[types.OperatorID]map[types.Period]*OperatorUptime, len(resolution.Operators)),
		Network:        make(map[types.Period]*Percentiles),
		Relays:         make(map[types.Fingerprint]map[types.Period]*FlagUptime, len(records)),
		outlierReports: make(map[types.OperatorID]map[types.Period]*OutlierReport, len(resolution.Operators)),
	}

	for _, op := range resolution.Operators {
		result.Operators[op.ID] = make(map[types.Period]*OperatorUptime)
		result.outlierReports[op.ID] = make(map[types.Period]*OutlierReport)
		sampled := sampledRelays(op.Relays)
		for _, period := range types.Periods() {
			values := periodValues(op.Relays, period)
			result.Operators[op.ID][period] = a.OperatorUptime(op.ID, period, values, sampled)

			report := a.Outliers(op.ID, period, op.Relays)
			result.outlierReports[op.ID][period] = report
			if report.Count() > 0 {
				result.Outliers = append(result.Outliers, report)
			}
		}
	}

	for _, period := range types.Periods() {
		rankEligible(result.Operators, period)
		result.Network[period] = NetworkPercentiles(period, records)
	}

	for _, record := range records {
		displays := make(map[types.Period]*FlagUptime)
		for _, period := range types.Periods() {
			displays[period] = a.FlagDisplay(record, period)
		}
		result.Relays[record.Fingerprint] = displays
	}

	logger.Debugw("analyzed reliability", "operators", len(result.Operators), "outlierReports", len(result.Outliers))
	return result
}

// OperatorUptime averages the values of relays with data for the period. No
// value is imputed for relays without data. sampled is the number of member
// relays with a valid sample in any period; eligibility is gated on it and on
// the period having an average at all.
func (a *Analyzer) OperatorUptime(id types.OperatorID, period types.Period, values []float64, sampled int) *OperatorUptime {
	uptime := &OperatorUptime{
		OperatorID:     id,
		Period:         period,
		Average:        types.None[float64](),
		RelaysWithData: len(values),
		RelaysSampled:  sampled,
		Percentile:     types.None[float64](),
	}
	if len(values) > 0 {
		uptime.Average = types.Some(mean(values))
		uptime.Eligible = sampled > a.config.MinRelays
	}
	return uptime
}

// Outliers reports the relays among relays whose uptime for the period lies at
// least OutlierSigma population standard deviations from the mean.
func (a *Analyzer) Outliers(id types.OperatorID, period types.Period, relays []*types.RelayRecord) *OutlierReport {
	report := &OutlierReport{
		OperatorID: id,
		Period:     period,
		Mean:       types.None[float64](),
		StdDev:     types.None[float64](),
	}

	var withData []*types.RelayRecord
	var values []float64
	for _, relay := range relays {
		if value, ok := relay.Uptime.Get(period).Get(); ok {
			withData = append(withData, relay)
			values = append(values, value)
		}
	}
	if len(values) < 2 {
		return report
	}

	mu := mean(values)
	sigma := populationStdDev(values, mu)
	report.Applicable = true
	report.Mean = types.Some(mu)
	report.StdDev = types.Some(sigma)
	if sigma == 0 {
		return report
	}

	threshold := a.config.OutlierSigma * sigma
	for i, value := range values {
		deviation := value - mu
		if math.Abs(deviation) < threshold {
			continue
		}
		outlier := Outlier{
			Fingerprint: withData[i].Fingerprint,
			Nickname:    withData[i].Nickname,
			Uptime:      value,
			ZScore:      deviation / sigma,
		}
		if deviation < 0 {
			report.Underperforming = append(report.Underperforming, outlier)
		} else {
			report.Exceptional = append(report.Exceptional, outlier)
		}
	}
	return report
}

// FlagDisplay selects the flag-specific uptime for the first flag the relay
// holds in display priority order.
func (a *Analyzer) FlagDisplay(relay *types.RelayRecord, period types.Period) *FlagUptime {
	display := &FlagUptime{
		Flag:    types.None[types.Flag](),
		Value:   types.None[float64](),
		Overall: relay.Uptime.Get(period),
	}
	for _, flag := range types.FlagDisplayPriority() {
		if !relay.HasFlag(flag) {
			continue
		}
		display.Flag = types.Some(flag)
		display.Value = relay.Uptime.GetFlag(flag, period)
		break
	}

	value, ok := display.Value.Get()
	overall, hasOverall := display.Overall.Get()
	if ok && hasOverall && math.Abs(value-overall) <= a.config.MatchTolerance+matchEpsilon {
		display.MatchesOverall = true
	}
	return display
}

// NetworkPercentiles computes uptime percentiles over every relay with data
// for the period.
func NetworkPercentiles(period types.Period, records []*types.RelayRecord) *Percentiles {
	values := periodValues(records, period)
	sort.Float64s(values)

	percentiles := &Percentiles{
		Period: period,
		Relays: len(values),
		Mean:   types.None[float64](),
		Values: make(map[int]types.Percent, len(NetworkPercentileRanks)),
	}
	for _, rank := range NetworkPercentileRanks {
		percentiles.Values[rank] = types.None[float64]()
	}
	if len(values) == 0 {
		return percentiles
	}

	percentiles.Mean = types.Some(mean(values))
	for _, rank := range NetworkPercentileRanks {
		percentiles.Values[rank] = types.Some(percentile(values, float64(rank)))
	}
	return percentiles
}

// rankEligible sets the network percentile of every eligible operator.
func rankEligible(operators map[types.OperatorID]map[types.Period]*OperatorUptime, period types.Period) {
	var eligible []*OperatorUptime
	var averages []float64
	for _, periods := range operators {
		uptime := periods[period]
		if !uptime.Eligible {
			continue
		}
		average, _ := uptime.Average.Get()
		eligible = append(eligible, uptime)
		averages = append(averages, average)
	}
	sort.Float64s(averages)

	for _, uptime := range eligible {
		average, _ := uptime.Average.Get()
		uptime.Percentile = types.Some(percentRankBelow(averages, average))
	}
}

func sampledRelays(relays []*types.RelayRecord) int {
	count := 0
	for _, relay := range relays {
		if relay.Uptime.HasData() {
			count++
		}
	}
	return count
}

func periodValues(relays []*types.RelayRecord, period types.Period) []float64 {
	var values []float64
	for _, relay := range relays {
		if value, ok := relay.Uptime.Get(period).Get(); ok {
			values = append(values, value)
		}
	}
	return values
}

func formatPercent(p types.Percent) string {
	value, ok := p.Get()
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", value)
}
