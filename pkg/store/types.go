package store

import (
	"time"
)

type ReportEntry struct {
	ID         string    `db:"id"`
	InsertedAt time.Time `db:"inserted_at"`

	Network     string    `db:"network"`
	GeneratedAt time.Time `db:"generated_at"`
	SnapshotAt  time.Time `db:"snapshot_at"`
	Relays      int       `db:"relays"`
	Operators   int       `db:"operators"`

	// Full report as JSON
	Payload string `db:"payload"`
}

type LeaderboardEntryRow struct {
	ReportID string `db:"report_id"`
	Category string `db:"category"`
	// Position orders ranked entries before overflow entries.
	Position int `db:"position"`

	OperatorID string  `db:"operator_id"`
	Rank       int     `db:"entry_rank"`
	Score      float64 `db:"score"`
	TieBreak   string  `db:"tie_break"`
	Display    string  `db:"display"`
}
