package reporter

import (
	"context"
	"fmt"
	"time"

	"github.com/relaymetrics/relay-monitor/pkg/intelligence"
	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/rarity"
	"github.com/relaymetrics/relay-monitor/pkg/reliability"
	"github.com/relaymetrics/relay-monitor/pkg/store"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"go.uber.org/zap"
)

// Reporter assembles the views a renderer shows from the latest published
// report.
type Reporter struct {
	store    store.Storer
	pageSize int
	logger   *zap.SugaredLogger
}

func NewReporter(store store.Storer, pageSize int, logger *zap.SugaredLogger) *Reporter {
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Reporter{
		store:    store,
		pageSize: pageSize,
		logger:   logger,
	}
}

type LeaderboardView struct {
	Category leaderboard.Category
	Family   leaderboard.Family
	Title    string
	Entries  []*leaderboard.Entry
	Total    int
}

// UptimeRow is one period of the network uptime distribution.
type UptimeRow struct {
	Period types.Period
	Relays int
	Mean   types.Percent
	P5     types.Percent
	P50    types.Percent
	P95    types.Percent
}

type Overview struct {
	ReportID    string
	Network     string
	GeneratedAt time.Time
	SnapshotAt  time.Time

	Relays          int
	RejectedRelays  int
	Operators       int
	NoContactRelays int

	Leaderboards  []*LeaderboardView
	Concentration *intelligence.Result
	Uptime        []*UptimeRow
	RareCountries []*rarity.CountryScore
	Outliers      []*reliability.OutlierReport
}

///
/// Leaderboards
///

func (reporter *Reporter) GetLeaderboardView(ctx context.Context, definition leaderboard.Definition) (*LeaderboardView, error) {
	page, err := reporter.store.GetLeaderboard(ctx, definition.Category, 0, reporter.pageSize)
	if err != nil {
		return nil, err
	}
	return &LeaderboardView{
		Category: definition.Category,
		Family:   definition.Family,
		Title:    definition.Title,
		Entries:  page.Entries,
		Total:    page.Total,
	}, nil
}

func (reporter *Reporter) GetLeaderboardViews(ctx context.Context) ([]*LeaderboardView, error) {
	var views []*LeaderboardView
	for _, definition := range leaderboard.Definitions() {
		view, err := reporter.GetLeaderboardView(ctx, definition)
		if err == store.ErrNoReport {
			return nil, err
		}
		if err != nil {
			reporter.logger.Warnf("could not get leaderboard %s: %v", definition.Category, err)
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

///
/// Reports
///

func (reporter *Reporter) GetOverview(ctx context.Context) (*Overview, error) {
	latest, err := reporter.store.GetLatestReport(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get latest report: %w", err)
	}

	views, err := reporter.GetLeaderboardViews(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get leaderboards: %w", err)
	}

	overview := &Overview{
		ReportID:        latest.ID,
		Network:         latest.Network,
		GeneratedAt:     latest.GeneratedAt,
		SnapshotAt:      latest.SnapshotAt,
		Relays:          latest.Relays,
		RejectedRelays:  latest.RejectedRelays,
		Operators:       latest.Operators,
		NoContactRelays: latest.NoContactRelays,
		Leaderboards:    views,
	}

	if metrics := latest.Metrics; metrics != nil {
		overview.Concentration = metrics.Concentration
		overview.Outliers = metrics.Outliers
		for _, country := range metrics.Countries {
			if country.Rare {
				overview.RareCountries = append(overview.RareCountries, country)
			}
		}
		for _, period := range types.Periods() {
			percentiles, ok := metrics.Uptime[period]
			if !ok {
				continue
			}
			overview.Uptime = append(overview.Uptime, &UptimeRow{
				Period: period,
				Relays: percentiles.Relays,
				Mean:   percentiles.Mean,
				P5:     percentiles.Get(5),
				P50:    percentiles.Get(50),
				P95:    percentiles.Get(95),
			})
		}
	}

	return overview, nil
}
