package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/relaymetrics/relay-monitor/pkg/data"
	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/report"
	"github.com/relaymetrics/relay-monitor/pkg/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const snapshotJSON = `{
	"fetched_at": "2024-03-01T12:00:00Z",
	"relays": [
		{
			"fingerprint": "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
			"nickname": "exit1",
			"flags": ["Exit", "Fast", "Running", "Valid"],
			"observed_bandwidth": 5000000,
			"consensus_weight_fraction": 0.4,
			"country": "de",
			"as": "AS1",
			"platform": "Tor 0.4.8.9 on Linux",
			"contact": "ciissversion:2 url:https://www.example.org proof:uri-rsa",
			"first_seen": "2015-03-01 12:00:00",
			"or_addresses": ["1.2.3.4:9001"]
		},
		{
			"fingerprint": "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
			"nickname": "guard1",
			"flags": ["Guard", "Fast", "Running", "Valid"],
			"observed_bandwidth": 3000000,
			"consensus_weight_fraction": 0.3,
			"country": "am",
			"as": "AS2",
			"platform": "Tor 0.4.8.9 on FreeBSD",
			"contact": "  CIISSVERSION:2   url:https://WWW.example.org proof:uri-rsa ",
			"first_seen": "2016-03-01 12:00:00",
			"or_addresses": ["5.6.7.8:443", "[2001:db8::1]:443"]
		},
		{
			"fingerprint": "CCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC",
			"nickname": "middle",
			"flags": ["Fast", "Running", "Valid"],
			"observed_bandwidth": 1000000,
			"consensus_weight_fraction": 0.2,
			"country": "us",
			"as": "AS3",
			"platform": "Tor 0.4.8.9 on Linux",
			"contact": "someone at somewhere dot net",
			"first_seen": "2020-03-01 12:00:00",
			"or_addresses": ["9.9.9.9:443"]
		},
		{
			"fingerprint": "DDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD",
			"nickname": "anonymous",
			"flags": ["Running"],
			"observed_bandwidth": 100,
			"consensus_weight_fraction": 0.1,
			"country": "fr",
			"as": "AS4"
		},
		{
			"nickname": "broken"
		}
	],
	"uptime": [
		{
			"fingerprint": "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
			"uptime": {"6_months": {"factor": 1, "values": [999, 999]}}
		}
	],
	"bandwidth": [
		{
			"fingerprint": "CCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC",
			"write_history": {"6_months": {"factor": 2, "values": [100, 300]}}
		}
	]
}`

type staticFetcher struct {
	snapshot *data.Snapshot
	err      error
}

func (f *staticFetcher) FetchSnapshot(ctx context.Context) (*data.Snapshot, error) {
	return f.snapshot, f.err
}

type recordingPublisher struct {
	reports []*report.Report
	err     error
}

func (p *recordingPublisher) PutReport(ctx context.Context, r *report.Report) error {
	if p.err != nil {
		return p.err
	}
	p.reports = append(p.reports, r)
	return nil
}

func testSnapshot(t *testing.T) *data.Snapshot {
	snapshot := &data.Snapshot{}
	require.NoError(t, json.Unmarshal([]byte(snapshotJSON), snapshot))
	return snapshot
}

func testHistory(t *testing.T) *store.HistoryCache {
	cache, err := store.NewHistoryCache(100, time.Hour)
	require.NoError(t, err)
	return cache
}

func TestProcess(t *testing.T) {
	m := New(&Opts{Network: "tor", Logger: zap.NewNop()})

	r, err := m.Process(testSnapshot(t))
	require.NoError(t, err)

	require.Equal(t, "tor", r.Network)
	require.Equal(t, 4, r.Relays)
	require.Equal(t, 1, r.RejectedRelays)
	require.Equal(t, 2, r.Operators)
	require.Equal(t, 1, r.NoContactRelays)
	require.Len(t, r.Leaderboards, len(leaderboard.Definitions()))

	relays, ok := r.Leaderboard(leaderboard.CategoryRelayCount)
	require.True(t, ok)
	require.Len(t, relays.Entries, 2)
	require.Equal(t, "example.org", relays.Entries[0].Display.Name)
	require.True(t, relays.Entries[0].Display.Authenticated)
	require.Equal(t, 2.0, relays.Entries[0].Score)

	weight, _ := r.Leaderboard(leaderboard.CategoryConsensusWeight)
	require.InDelta(t, 0.7, weight.Entries[0].Score, 1e-12)

	// Every country holds a single relay, so every country is rare.
	frontier, _ := r.Leaderboard(leaderboard.CategoryFrontierBuilders)
	require.Len(t, frontier.Entries, 2)
	require.Equal(t, 2.0, frontier.Entries[0].Score)

	// Without a history cache nobody is eligible.
	served, _ := r.Leaderboard(leaderboard.CategoryBandwidthServed)
	require.Empty(t, served.Entries)

	require.NotNil(t, r.Metrics.Concentration)
	require.InDelta(t, 1.0, r.Metrics.Concentration.TotalConsensusWeight, 1e-12)
	require.Equal(t, r.SnapshotAt, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestProcessIsIdempotent(t *testing.T) {
	m := New(&Opts{Network: "tor", Logger: zap.NewNop()})
	snapshot := testSnapshot(t)

	first, err := m.Process(snapshot)
	require.NoError(t, err)
	second, err := m.Process(snapshot)
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, first.Leaderboards, second.Leaderboards)
	require.Equal(t, first.Metrics, second.Metrics)
}

func TestRunPublishes(t *testing.T) {
	memory := store.NewMemoryStore(0)
	output := &recordingPublisher{}
	m := New(&Opts{
		Network: "tor",
		Fetcher: &staticFetcher{snapshot: testSnapshot(t)},
		History: testHistory(t),
		Store:   memory,
		Outputs: []Publisher{output},
		Logger:  zap.NewNop(),
	})

	r, err := m.Run(context.Background())
	require.NoError(t, err)
	require.False(t, m.Running())

	latest, err := memory.GetLatestReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, r.ID, latest.ID)
	require.Len(t, output.reports, 1)

	published, ok := m.Latest()
	require.True(t, ok)
	require.Equal(t, r.ID, published.ID)

	served, _ := r.Leaderboard(leaderboard.CategoryBandwidthServed)
	require.Len(t, served.Entries, 1)
	require.Equal(t, 400.0, served.Entries[0].Score)
}

func TestRunFetchFailurePublishesNothing(t *testing.T) {
	memory := store.NewMemoryStore(0)
	m := New(&Opts{
		Fetcher: &staticFetcher{err: errors.New("connection refused")},
		Store:   memory,
		Logger:  zap.NewNop(),
	})

	_, err := m.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, 0, memory.Count())
	_, ok := m.Latest()
	require.False(t, ok)
}

func TestRunStoreFailureSkipsOutputs(t *testing.T) {
	output := &recordingPublisher{}
	m := New(&Opts{
		Fetcher: &staticFetcher{snapshot: testSnapshot(t)},
		Store:   &recordingPublisher{err: errors.New("disk full")},
		Outputs: []Publisher{output},
		Logger:  zap.NewNop(),
	})

	_, err := m.Run(context.Background())
	require.Error(t, err)
	require.Empty(t, output.reports)
}

func TestRunOutputFailureIsNotFatal(t *testing.T) {
	memory := store.NewMemoryStore(0)
	m := New(&Opts{
		Fetcher: &staticFetcher{snapshot: testSnapshot(t)},
		Store:   memory,
		Outputs: []Publisher{&recordingPublisher{err: errors.New("broker down")}},
		Logger:  zap.NewNop(),
	})

	_, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, memory.Count())
}

func TestRunRejectsOverlap(t *testing.T) {
	m := New(&Opts{
		Fetcher: &staticFetcher{snapshot: testSnapshot(t)},
		Logger:  zap.NewNop(),
	})
	m.running.Store(true)

	_, err := m.Run(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)
}
