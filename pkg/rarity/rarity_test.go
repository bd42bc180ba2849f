package rarity

import (
	"fmt"
	"testing"

	"github.com/relaymetrics/relay-monitor/pkg/config"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClassifier() *Classifier {
	return NewClassifier(zap.NewNop(), config.DefaultTables(), 6)
}

func records(country types.Country, n int, offset int) []*types.RelayRecord {
	out := make([]*types.RelayRecord, n)
	for i := range out {
		out[i] = &types.RelayRecord{
			Fingerprint: fmt.Sprintf("%s-%d", country, offset+i),
			Country:     country,
		}
	}
	return out
}

func TestArmeniaIsRare(t *testing.T) {
	score := testClassifier().Score("am", 4, 9570)
	require.Equal(t, Factors{RelayCount: 3, NetworkPct: 6, Geopolitical: 1, Regional: 0}, score.Factors)
	require.Equal(t, 32, score.Score)
	require.True(t, score.Rare)
	require.Equal(t, TierLegendary, score.Tier)
}

func TestFranceIsNotRare(t *testing.T) {
	score := testClassifier().Score("fr", 800, 9570)
	require.Equal(t, Factors{}, score.Factors)
	require.Equal(t, 0, score.Score)
	require.False(t, score.Rare)
	require.Equal(t, TierCommon, score.Tier)
}

func TestScoreIsWeightedSumAndNonNegative(t *testing.T) {
	classifier := testClassifier()
	tables := config.DefaultTables()
	countries := append(append(tables.ConflictAuthoritarian, tables.Developing...), "fr", "de", "us", "zz")
	for _, country := range countries {
		for _, relays := range []int{1, 3, 7, 20, 500, 9570} {
			score := classifier.Score(types.Country(country), relays, 9570)
			f := score.Factors
			require.Equal(t, 4*f.RelayCount+3*f.NetworkPct+2*f.Geopolitical+f.Regional, score.Score)
			require.GreaterOrEqual(t, score.Score, 0)
		}
	}
}

func TestFactors(t *testing.T) {
	classifier := testClassifier()
	tests := []struct {
		name    string
		country types.Country
		relays  int
		total   int
		want    Factors
	}{
		{"single relay", "zz", 1, 100000, Factors{RelayCount: 6, NetworkPct: 6}},
		{"seven relays", "zz", 7, 100000, Factors{NetworkPct: 6}},
		{"share below 0.1", "zz", 7, 10000, Factors{NetworkPct: 4}},
		{"share below 0.2", "zz", 15, 10000, Factors{NetworkPct: 2}},
		{"share above 0.2", "zz", 25, 10000, Factors{}},
		{"conflict", "sy", 50, 100, Factors{Geopolitical: 3}},
		{"conflict underrepresented", "sd", 50, 100, Factors{Geopolitical: 3, Regional: 2}},
		{"island emerging", "jm", 50, 100, Factors{Geopolitical: 2, Regional: 1}},
		{"central asia", "kz", 50, 100, Factors{Regional: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, classifier.Factors(tt.country, tt.relays, tt.total))
		})
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score int
		tier  Tier
	}{
		{0, TierCommon},
		{2, TierCommon},
		{3, TierEmerging},
		{5, TierEmerging},
		{6, TierRare},
		{9, TierRare},
		{10, TierEpic},
		{14, TierEpic},
		{15, TierLegendary},
		{42, TierLegendary},
	}
	for _, tt := range tests {
		require.Equal(t, tt.tier, TierFor(tt.score), tt.score)
	}
}

func TestCutoffIsConfigurable(t *testing.T) {
	strict := NewClassifier(zap.NewNop(), config.DefaultTables(), 40)
	require.False(t, strict.Score("am", 4, 9570).Rare)
}

func TestClassify(t *testing.T) {
	var all []*types.RelayRecord
	all = append(all, records("de", 900, 0)...)
	all = append(all, records("am", 2, 0)...)
	all = append(all, records(types.UnknownCountry, 98, 0)...)

	result := testClassifier().Classify(all)
	require.Equal(t, 1000, result.TotalRelays)
	require.Len(t, result.Countries, 2)
	require.Equal(t, types.Country("am"), result.Countries[0].Country)
	require.True(t, result.IsRare("am"))
	require.False(t, result.IsRare("de"))
	require.False(t, result.IsRare(types.UnknownCountry))
	require.Equal(t, []types.Country{"am"}, result.RareCountries())

	_, ok := result.Get(types.UnknownCountry)
	require.False(t, ok)
	require.Equal(t, TierCommon, result.TiersByCountry()["de"])
}

func TestFrontierContributionCountsDistinctRareRelays(t *testing.T) {
	var all []*types.RelayRecord
	all = append(all, records("de", 900, 0)...)
	armenia := records("am", 2, 0)
	all = append(all, armenia...)

	result := testClassifier().Classify(all)

	relays := []*types.RelayRecord{armenia[0], armenia[0], armenia[1], all[0], all[1]}
	require.Equal(t, 2, FrontierContribution(result, relays))
	require.Equal(t, 0, FrontierContribution(result, all[:10]))
}
