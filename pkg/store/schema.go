package store

const (
	TableReports            = "reports"
	TableLeaderboardEntries = "leaderboard_entries"
)

// schema is valid for both PostgreSQL and SQLite.
var schema = `
CREATE TABLE IF NOT EXISTS ` + TableReports + ` (
	id           VARCHAR(36) PRIMARY KEY,
	inserted_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

	network      TEXT NOT NULL,
	generated_at TIMESTAMP NOT NULL,
	snapshot_at  TIMESTAMP NOT NULL,
	relays       INTEGER NOT NULL,
	operators    INTEGER NOT NULL,

	payload      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS ` + TableReports + `_generated_at_idx ON ` + TableReports + ` (generated_at);

CREATE TABLE IF NOT EXISTS ` + TableLeaderboardEntries + ` (
	report_id    VARCHAR(36) NOT NULL REFERENCES ` + TableReports + ` (id) ON DELETE CASCADE,
	category     TEXT NOT NULL,
	position     INTEGER NOT NULL,

	operator_id  TEXT NOT NULL,
	entry_rank   INTEGER NOT NULL,
	score        DOUBLE PRECISION NOT NULL,
	tie_break    TEXT NOT NULL,
	display      TEXT NOT NULL,

	PRIMARY KEY (report_id, category, position)
);

CREATE INDEX IF NOT EXISTS ` + TableLeaderboardEntries + `_operator_idx ON ` + TableLeaderboardEntries + ` (operator_id);
`
