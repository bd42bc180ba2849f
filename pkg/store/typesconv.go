package store

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/report"
	"github.com/relaymetrics/relay-monitor/pkg/types"
)

// ReportToEntry converts a report into its database entry.
func ReportToEntry(r *report.Report) (*ReportEntry, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode report")
	}

	return &ReportEntry{
		ID:          r.ID,
		Network:     r.Network,
		GeneratedAt: r.GeneratedAt.UTC(),
		SnapshotAt:  r.SnapshotAt.UTC(),
		Relays:      r.Relays,
		Operators:   r.Operators,
		Payload:     string(payload),
	}, nil
}

// EntryToReport decodes the report stored in entry.
func EntryToReport(entry *ReportEntry) (*report.Report, error) {
	r := &report.Report{}
	err := json.Unmarshal([]byte(entry.Payload), r)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode report %s", entry.ID)
	}
	return r, nil
}

// LeaderboardToRows flattens a leaderboard into rows, ranked entries first.
func LeaderboardToRows(reportID string, board *leaderboard.Leaderboard) ([]*LeaderboardEntryRow, error) {
	entries := make([]*leaderboard.Entry, 0, len(board.Entries)+len(board.Overflow))
	entries = append(entries, board.Entries...)
	entries = append(entries, board.Overflow...)

	rows := make([]*LeaderboardEntryRow, 0, len(entries))
	for position, entry := range entries {
		display, err := json.Marshal(entry.Display)
		if err != nil {
			return nil, errors.Wrap(err, "could not encode display fields")
		}
		rows = append(rows, &LeaderboardEntryRow{
			ReportID:   reportID,
			Category:   string(board.Category),
			Position:   position,
			OperatorID: entry.OperatorID,
			Rank:       entry.Rank,
			Score:      entry.Score,
			TieBreak:   entry.TieBreak,
			Display:    string(display),
		})
	}
	return rows, nil
}

// RowToEntry converts a row back into a leaderboard entry.
func RowToEntry(row *LeaderboardEntryRow) (*leaderboard.Entry, error) {
	entry := &leaderboard.Entry{
		OperatorID: types.OperatorID(row.OperatorID),
		Category:   leaderboard.Category(row.Category),
		Score:      row.Score,
		Rank:       row.Rank,
		TieBreak:   row.TieBreak,
	}
	err := json.Unmarshal([]byte(row.Display), &entry.Display)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode display fields")
	}
	return entry, nil
}
