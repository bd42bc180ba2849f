package reliability

import (
	"fmt"
	"testing"

	"github.com/relaymetrics/relay-monitor/pkg/operator"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAnalyzer() *Analyzer {
	return NewAnalyzer(zap.NewNop(), Config{
		MinRelays:      25,
		OutlierSigma:   2.0,
		MatchTolerance: 0.1,
	})
}

func relayWithUptime(fingerprint string, period types.Period, value float64, flags ...types.Flag) *types.RelayRecord {
	uptime := types.NewUptimePeriodSeries()
	uptime.Overall[period] = types.Some(value)
	return &types.RelayRecord{
		Fingerprint: fingerprint,
		Nickname:    "nick-" + fingerprint,
		Flags:       types.NewFlagSet(flags...),
		Uptime:      uptime,
	}
}

func relaysWithUptime(prefix string, n int, period types.Period, value float64) []*types.RelayRecord {
	out := make([]*types.RelayRecord, n)
	for i := range out {
		out[i] = relayWithUptime(fmt.Sprintf("%s%d", prefix, i), period, value)
	}
	return out
}

func TestEligibilityIsStrictlyGreaterThanThreshold(t *testing.T) {
	analyzer := testAnalyzer()

	tests := []struct {
		relays   int
		eligible bool
	}{
		{0, false},
		{1, false},
		{25, false},
		{26, true},
		{100, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.relays), func(t *testing.T) {
			values := make([]float64, tt.relays)
			for i := range values {
				values[i] = 99
			}
			uptime := analyzer.OperatorUptime("op", types.Period6Months, values, tt.relays)
			require.Equal(t, tt.eligible, uptime.Eligible)
			require.Equal(t, tt.relays > 0, uptime.Average.Valid())
		})
	}
}

func TestEligibilityCountsRelaysSampledInAnyPeriod(t *testing.T) {
	var relays []*types.RelayRecord
	for i := 0; i < 30; i++ {
		relay := relayWithUptime(fmt.Sprintf("R%d", i), types.Period1Month, 95)
		if i < 20 {
			relay.Uptime.Overall[types.Period6Months] = types.Some(80.0)
		}
		relays = append(relays, relay)
	}
	op := &operator.Operator{ID: "op", Relays: relays}
	result := testAnalyzer().Analyze(&operator.Resolution{Operators: []*operator.Operator{op}}, relays)

	sixMonths, ok := result.Uptime("op", types.Period6Months)
	require.True(t, ok)
	require.Equal(t, 20, sixMonths.RelaysWithData)
	require.Equal(t, 30, sixMonths.RelaysSampled)
	require.True(t, sixMonths.Eligible)
	average, ok := sixMonths.Average.Get()
	require.True(t, ok)
	require.Equal(t, 80.0, average)
	require.True(t, sixMonths.Percentile.Valid())

	// no samples at all for the period leaves nothing to rank
	fiveYears, _ := result.Uptime("op", types.Period5Years)
	require.Equal(t, 30, fiveYears.RelaysSampled)
	require.False(t, fiveYears.Eligible)
	require.False(t, fiveYears.Percentile.Valid())
}

func TestOperatorAverageSkipsRelaysWithoutData(t *testing.T) {
	relays := relaysWithUptime("A", 3, types.Period1Month, 90)
	relays = append(relays, relayWithUptime("B", types.Period1Month, 60))
	relays = append(relays, relayWithUptime("C", types.Period6Months, 0))

	op := &operator.Operator{ID: "op", Relays: relays}
	result := testAnalyzer().Analyze(&operator.Resolution{Operators: []*operator.Operator{op}}, relays)

	month, ok := result.Uptime("op", types.Period1Month)
	require.True(t, ok)
	average, ok := month.Average.Get()
	require.True(t, ok)
	require.InDelta(t, 82.5, average, 1e-9)
	require.Equal(t, 4, month.RelaysWithData)

	sixMonths, _ := result.Uptime("op", types.Period6Months)
	average, ok = sixMonths.Average.Get()
	require.True(t, ok)
	require.Equal(t, 0.0, average)

	fiveYears, _ := result.Uptime("op", types.Period5Years)
	require.False(t, fiveYears.Average.Valid())
	require.False(t, fiveYears.Percentile.Valid())
}

func TestPercentileAmongEligibleOperators(t *testing.T) {
	period := types.Period6Months
	low := &operator.Operator{ID: "low", Relays: relaysWithUptime("L", 26, period, 80)}
	mid := &operator.Operator{ID: "mid", Relays: relaysWithUptime("M", 26, period, 90)}
	high := &operator.Operator{ID: "high", Relays: relaysWithUptime("H", 26, period, 99)}
	small := &operator.Operator{ID: "small", Relays: relaysWithUptime("S", 25, period, 100)}

	resolution := &operator.Resolution{Operators: []*operator.Operator{high, low, mid, small}}
	result := testAnalyzer().Analyze(resolution, nil)

	tests := []struct {
		id         types.OperatorID
		eligible   bool
		percentile float64
	}{
		{"low", true, 0},
		{"mid", true, 100.0 / 3},
		{"high", true, 200.0 / 3},
		{"small", false, 0},
	}
	for _, tt := range tests {
		uptime, ok := result.Uptime(tt.id, period)
		require.True(t, ok)
		require.Equal(t, tt.eligible, uptime.Eligible, tt.id)
		percentile, ok := uptime.Percentile.Get()
		require.Equal(t, tt.eligible, ok, tt.id)
		require.InDelta(t, tt.percentile, percentile, 1e-9, tt.id)
	}
}

func TestOutliers(t *testing.T) {
	analyzer := testAnalyzer()
	period := types.Period1Month

	t.Run("two identical relays", func(t *testing.T) {
		relays := relaysWithUptime("A", 2, period, 97.5)
		report := analyzer.Outliers("op", period, relays)
		require.True(t, report.Applicable)
		require.Zero(t, report.Count())
		stdDev, _ := report.StdDev.Get()
		require.Equal(t, 0.0, stdDev)
	})

	t.Run("single relay", func(t *testing.T) {
		report := analyzer.Outliers("op", period, relaysWithUptime("A", 1, period, 50))
		require.False(t, report.Applicable)
		require.False(t, report.Mean.Valid())
		require.Zero(t, report.Count())
	})

	t.Run("no data", func(t *testing.T) {
		relays := relaysWithUptime("A", 5, types.Period5Years, 50)
		report := analyzer.Outliers("op", period, relays)
		require.False(t, report.Applicable)
	})

	t.Run("underperforming and exceptional", func(t *testing.T) {
		relays := relaysWithUptime("A", 18, period, 90)
		relays = append(relays, relayWithUptime("low", period, 10))
		relays = append(relays, relayWithUptime("high", period, 100))
		report := analyzer.Outliers("op", period, relays)
		require.True(t, report.Applicable)
		require.Len(t, report.Underperforming, 1)
		require.Equal(t, "low", report.Underperforming[0].Fingerprint)
		require.Less(t, report.Underperforming[0].ZScore, -2.0)
		require.Empty(t, report.Exceptional)
	})

	t.Run("deviation exactly at threshold", func(t *testing.T) {
		// mean 2, population sigma 4, so 10 sits exactly 2 sigma above
		relays := relaysWithUptime("A", 4, period, 0)
		relays = append(relays, relayWithUptime("edge", period, 10))
		report := analyzer.Outliers("op", period, relays)
		mean, _ := report.Mean.Get()
		stdDev, _ := report.StdDev.Get()
		require.Equal(t, 2.0, mean)
		require.Equal(t, 4.0, stdDev)
		require.Len(t, report.Exceptional, 1)
		require.Equal(t, "edge", report.Exceptional[0].Fingerprint)
		require.Equal(t, 2.0, report.Exceptional[0].ZScore)
		require.Empty(t, report.Underperforming)
	})

	t.Run("exceptional", func(t *testing.T) {
		relays := relaysWithUptime("A", 10, period, 10)
		relays = append(relays, relayWithUptime("high", period, 100))
		report := analyzer.Outliers("op", period, relays)
		require.Len(t, report.Exceptional, 1)
		require.Equal(t, "high", report.Exceptional[0].Fingerprint)
	})
}

func TestFlagDisplay(t *testing.T) {
	analyzer := testAnalyzer()
	period := types.Period1Month

	relay := func(overall float64, flagValues map[types.Flag]float64, flags ...types.Flag) *types.RelayRecord {
		r := relayWithUptime("A", period, overall, flags...)
		for flag, value := range flagValues {
			r.Uptime.ByFlag[flag] = map[types.Period]types.Percent{period: types.Some(value)}
		}
		return r
	}

	tests := []struct {
		name    string
		relay   *types.RelayRecord
		flag    types.Optional[types.Flag]
		matches bool
		display string
	}{
		{
			name:    "exit within tolerance",
			relay:   relay(95.0, map[types.Flag]float64{types.FlagExit: 94.95}, types.FlagExit, types.FlagRunning),
			flag:    types.Some(types.FlagExit),
			matches: true,
			display: "matches overall",
		},
		{
			name:    "exit beyond tolerance",
			relay:   relay(95.0, map[types.Flag]float64{types.FlagExit: 90.0}, types.FlagExit, types.FlagRunning),
			flag:    types.Some(types.FlagExit),
			display: "Exit 90.0%",
		},
		{
			name: "exit takes priority over guard",
			relay: relay(95.0, map[types.Flag]float64{types.FlagExit: 80.0, types.FlagGuard: 95.0},
				types.FlagGuard, types.FlagExit, types.FlagFast),
			flag:    types.Some(types.FlagExit),
			display: "Exit 80.0%",
		},
		{
			name:    "guard before fast",
			relay:   relay(95.0, map[types.Flag]float64{types.FlagGuard: 50.0}, types.FlagFast, types.FlagGuard),
			flag:    types.Some(types.FlagGuard),
			display: "Guard 50.0%",
		},
		{
			name:    "running only",
			relay:   relay(95.0, map[types.Flag]float64{types.FlagRunning: 95.0}, types.FlagRunning),
			flag:    types.Some(types.FlagRunning),
			matches: true,
			display: "matches overall",
		},
		{
			name:    "no displayed flag",
			relay:   relay(95.0, nil, types.FlagStable),
			flag:    types.None[types.Flag](),
			display: "n/a",
		},
		{
			name:    "flag without data",
			relay:   relay(95.0, nil, types.FlagExit),
			flag:    types.Some(types.FlagExit),
			display: "n/a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display := analyzer.FlagDisplay(tt.relay, period)
			require.Equal(t, tt.flag, display.Flag)
			require.Equal(t, tt.matches, display.MatchesOverall)
			require.Equal(t, tt.display, display.Display())
		})
	}
}

func TestNetworkPercentiles(t *testing.T) {
	period := types.Period1Month
	var relays []*types.RelayRecord
	for i := 0; i <= 100; i++ {
		relays = append(relays, relayWithUptime(fmt.Sprint(i), period, float64(i)))
	}
	relays = append(relays, relayWithUptime("other", types.Period1Year, 5))

	percentiles := NetworkPercentiles(period, relays)
	require.Equal(t, 101, percentiles.Relays)
	for _, rank := range NetworkPercentileRanks {
		value, ok := percentiles.Get(rank).Get()
		require.True(t, ok)
		require.InDelta(t, float64(rank), value, 1e-9)
	}
	mean, _ := percentiles.Mean.Get()
	require.InDelta(t, 50.0, mean, 1e-9)

	empty := NetworkPercentiles(types.Period5Years, relays)
	require.Zero(t, empty.Relays)
	require.False(t, empty.Get(50).Valid())
	require.False(t, empty.Mean.Valid())
}

func TestPercentileInterpolates(t *testing.T) {
	require.Equal(t, 15.0, percentile([]float64{10, 20}, 50))
	require.Equal(t, 7.0, percentile([]float64{7}, 99))
	require.Equal(t, 40.0, percentile([]float64{10, 20, 30, 40}, 100))
}

func TestAnalyzeCoversEveryRelay(t *testing.T) {
	relays := relaysWithUptime("A", 3, types.Period1Month, 90)
	result := testAnalyzer().Analyze(&operator.Resolution{NoContact: relays}, relays)
	require.Len(t, result.Relays, 3)
	require.Len(t, result.Relays["A0"], len(types.Periods()))
	require.Equal(t, 3, result.Network[types.Period1Month].Relays)
}
