package store

import (
	"testing"

	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestEntryToReport(t *testing.T) {
	type args struct {
		entry *ReportEntry
	}
	tests := []struct {
		name    string
		args    args
		wantID  string
		wantErr bool
	}{
		{
			name: "empty",
			args: args{
				entry: &ReportEntry{},
			},
			wantErr: true,
		},
		{
			name: "malformed",
			args: args{
				entry: &ReportEntry{
					ID:      "a",
					Payload: `{"id":`,
				},
			},
			wantErr: true,
		},
		{
			name: "valid",
			args: args{
				entry: &ReportEntry{
					ID:      "a",
					Payload: `{"id":"a","relays":3,"leaderboards":{}}`,
				},
			},
			wantID: "a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EntryToReport(tt.args.entry)
			if (err != nil) != tt.wantErr {
				t.Errorf("EntryToReport() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && got.ID != tt.wantID {
				t.Errorf("EntryToReport() = %v, want %v", got.ID, tt.wantID)
			}
		})
	}
}

func TestLeaderboardRows(t *testing.T) {
	board := leaderboard.Rank([]*leaderboard.Entry{
		{OperatorID: "a", Category: leaderboard.CategoryRelayCount, Score: 3, Display: leaderboard.Display{Name: "a.org", Domain: types.Some("a.org"), Authenticated: true}},
		{OperatorID: "b", Category: leaderboard.CategoryRelayCount, Score: 2, Display: leaderboard.Display{Name: "b", Domain: types.None[string]()}},
		{OperatorID: "c", Category: leaderboard.CategoryRelayCount, Score: 1, Display: leaderboard.Display{Name: "c", Domain: types.None[string]()}},
	}, 2)
	board.Category = leaderboard.CategoryRelayCount

	rows, err := LeaderboardToRows("report", board)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, 2, rows[2].Position)
	require.Equal(t, 0, rows[2].Rank)
	require.Equal(t, "relay_count", rows[0].Category)

	entry, err := RowToEntry(rows[0])
	require.NoError(t, err)
	require.Equal(t, types.OperatorID("a"), entry.OperatorID)
	require.Equal(t, 1, entry.Rank)
	require.True(t, entry.Display.Authenticated)
	domain, ok := entry.Display.Domain.Get()
	require.True(t, ok)
	require.Equal(t, "a.org", domain)

	entry, err = RowToEntry(rows[1])
	require.NoError(t, err)
	require.False(t, entry.Display.Domain.Valid())

	_, err = RowToEntry(&LeaderboardEntryRow{Display: "not json"})
	require.Error(t, err)
}
