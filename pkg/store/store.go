package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaymetrics/relay-monitor/pkg/config"
	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/report"
	"go.uber.org/zap"
)

var (
	ErrNoReport        = errors.New("no report has been published")
	ErrUnknownCategory = errors.New("unknown leaderboard category")
)

// LeaderboardPage is a window over one category of the latest report.
type LeaderboardPage struct {
	ReportID string               `json:"report_id"`
	Category leaderboard.Category `json:"category"`
	Offset   int                  `json:"offset"`
	Limit    int                  `json:"limit"`
	Total    int                  `json:"total"`
	Entries  []*leaderboard.Entry `json:"entries"`
}

// Storer publishes reports. PutReport either stores the complete report or
// nothing.
type Storer interface {
	PutReport(ctx context.Context, report *report.Report) error
	GetLatestReport(ctx context.Context) (*report.Report, error)
	GetLeaderboard(ctx context.Context, category leaderboard.Category, offset, limit int) (*LeaderboardPage, error)
	Close() error
}

// New returns the store selected by config.
func New(config *config.StoreConfig, logger *zap.Logger) (Storer, error) {
	switch config.Driver {
	case "", "memory":
		return NewMemoryStore(config.Retain), nil
	case DriverPostgres, DriverSQLite:
		return NewSQLStore(config.Driver, config.Dsn, logger)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", config.Driver)
	}
}
