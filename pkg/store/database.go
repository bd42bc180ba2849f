package store

import (
	"context"
	"database/sql"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/report"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLStore publishes reports to PostgreSQL or SQLite.
type SQLStore struct {
	DB *sqlx.DB

	driver string
	logger *zap.SugaredLogger
}

func NewSQLStore(driver, dsn string, zapLogger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to %s", driver)
	}

	if driver == DriverSQLite {
		db.DB.SetMaxOpenConns(1)
		_, err = db.Exec(`PRAGMA foreign_keys = ON`)
		if err != nil {
			return nil, errors.Wrap(err, "could not enable foreign keys")
		}
	} else {
		db.DB.SetMaxOpenConns(50)
		db.DB.SetMaxIdleConns(10)
		db.DB.SetConnMaxIdleTime(0)
	}

	if os.Getenv("DB_DONT_APPLY_SCHEMA") == "" {
		_, err = db.Exec(schema)
		if err != nil {
			return nil, errors.Wrap(err, "could not apply schema")
		}
	}

	return &SQLStore{DB: db, driver: driver, logger: zapLogger.Sugar()}, nil
}

func (store *SQLStore) Close() error {
	return store.DB.Close()
}

// PutReport writes the report and every leaderboard row in one transaction.
func (store *SQLStore) PutReport(ctx context.Context, r *report.Report) error {
	entry, err := ReportToEntry(r)
	if err != nil {
		return err
	}

	var rows []*LeaderboardEntryRow
	for _, category := range r.Categories() {
		board, _ := r.Leaderboard(category)
		boardRows, err := LeaderboardToRows(r.ID, board)
		if err != nil {
			return err
		}
		rows = append(rows, boardRows...)
	}

	tx, err := store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	query := `INSERT INTO ` + TableReports + `
	(id, network, generated_at, snapshot_at, relays, operators, payload) VALUES
	(:id, :network, :generated_at, :snapshot_at, :relays, :operators, :payload)`
	_, err = tx.NamedExecContext(ctx, query, entry)
	if err != nil {
		return errors.Wrapf(err, "could not insert report %s", r.ID)
	}

	query = `INSERT INTO ` + TableLeaderboardEntries + `
	(report_id, category, position, operator_id, entry_rank, score, tie_break, display) VALUES
	(:report_id, :category, :position, :operator_id, :entry_rank, :score, :tie_break, :display)`
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return errors.Wrap(err, "could not prepare leaderboard insert")
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err = stmt.ExecContext(ctx, row)
		if err != nil {
			return errors.Wrapf(err, "could not insert %s entry %d", row.Category, row.Position)
		}
	}

	err = tx.Commit()
	if err != nil {
		return errors.Wrap(err, "could not commit report")
	}

	store.logger.Infow("saved report to db", "id", r.ID, "leaderboard_rows", len(rows))
	return nil
}

func (store *SQLStore) latestEntry(ctx context.Context, columns string) (*ReportEntry, error) {
	query := `SELECT ` + columns + `
	FROM ` + TableReports + `
	ORDER BY generated_at DESC, inserted_at DESC
	LIMIT 1`

	entry := &ReportEntry{}
	err := store.DB.GetContext(ctx, entry, query)
	if errors.Cause(err) == sql.ErrNoRows {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch latest report")
	}
	return entry, nil
}

func (store *SQLStore) GetLatestReport(ctx context.Context) (*report.Report, error) {
	entry, err := store.latestEntry(ctx, `id, payload`)
	if err != nil {
		return nil, err
	}
	return EntryToReport(entry)
}

func (store *SQLStore) GetLeaderboard(ctx context.Context, category leaderboard.Category, offset, limit int) (*LeaderboardPage, error) {
	if !knownCategory(category) {
		return nil, ErrUnknownCategory
	}

	entry, err := store.latestEntry(ctx, `id`)
	if err != nil {
		return nil, err
	}

	var total int
	query := store.DB.Rebind(`SELECT COUNT(*)
	FROM ` + TableLeaderboardEntries + `
	WHERE report_id=? AND category=?`)
	err = store.DB.GetContext(ctx, &total, query, entry.ID, string(category))
	if err != nil {
		return nil, errors.Wrap(err, "could not count leaderboard entries")
	}

	query = store.DB.Rebind(BuildPageClause(`SELECT report_id, category, position, operator_id, entry_rank, score, tie_break, display
	FROM `+TableLeaderboardEntries+`
	WHERE report_id=? AND category=?
	ORDER BY position ASC`, offset, limit))

	rows := []*LeaderboardEntryRow{}
	err = store.DB.SelectContext(ctx, &rows, query, entry.ID, string(category))
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch leaderboard entries")
	}

	entries := make([]*leaderboard.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := RowToEntry(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return &LeaderboardPage{
		ReportID: entry.ID,
		Category: category,
		Offset:   offset,
		Limit:    limit,
		Total:    total,
		Entries:  entries,
	}, nil
}

func knownCategory(category leaderboard.Category) bool {
	for _, definition := range leaderboard.Definitions() {
		if definition.Category == category {
			return true
		}
	}
	return false
}
