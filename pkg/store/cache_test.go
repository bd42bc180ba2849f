package store

import (
	"strings"
	"testing"
	"time"

	"github.com/relaymetrics/relay-monitor/pkg/data"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"github.com/stretchr/testify/require"
)

func int64Ptr(i int64) *int64 {
	return &i
}

func TestHistoryCacheExpiry(t *testing.T) {
	cache, err := NewHistoryCache(10, time.Hour)
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	fingerprint := strings.Repeat("A", 40)
	cache.Put(fingerprint, 1024)

	served, ok := cache.ServedBandwidth(fingerprint)
	require.True(t, ok)
	require.Equal(t, 1024.0, served)

	_, ok = cache.ServedBandwidth(strings.Repeat("B", 40))
	require.False(t, ok)

	now = now.Add(time.Hour)
	_, ok = cache.ServedBandwidth(fingerprint)
	require.False(t, ok)
	require.Equal(t, 0, cache.Len())
}

func TestHistoryCacheEviction(t *testing.T) {
	cache, err := NewHistoryCache(1, time.Hour)
	require.NoError(t, err)

	cache.Put(strings.Repeat("A", 40), 1)
	cache.Put(strings.Repeat("B", 40), 2)

	_, ok := cache.ServedBandwidth(strings.Repeat("A", 40))
	require.False(t, ok)
	served, ok := cache.ServedBandwidth(strings.Repeat("B", 40))
	require.True(t, ok)
	require.Equal(t, 2.0, served)
}

func TestHistoryCacheRefresh(t *testing.T) {
	cache, err := NewHistoryCache(10, time.Hour)
	require.NoError(t, err)

	history := func(factor float64, values ...*int64) map[string]data.RawGraphHistory {
		return map[string]data.RawGraphHistory{
			types.Period6Months: {Factor: factor, Values: values},
		}
	}

	stored := cache.Refresh([]data.RawBandwidth{
		{Fingerprint: strings.Repeat("a", 40), WriteHistory: history(2, int64Ptr(100), nil, int64Ptr(300))},
		{Fingerprint: strings.Repeat("b", 40), WriteHistory: history(1, nil)},
		{Fingerprint: "short", WriteHistory: history(1, int64Ptr(1))},
		{Fingerprint: strings.Repeat("c", 40)},
	})
	require.Equal(t, 1, stored)

	served, ok := cache.ServedBandwidth(strings.Repeat("A", 40))
	require.True(t, ok)
	require.Equal(t, 400.0, served)
}
