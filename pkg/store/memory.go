package store

import (
	"context"
	"sync"

	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/report"
)

// MemoryStore keeps published reports for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	reports []*report.Report
	// retain bounds the number of reports kept; 0 keeps all.
	retain int
}

func NewMemoryStore(retain int) *MemoryStore {
	return &MemoryStore{
		retain: retain,
	}
}

func (s *MemoryStore) PutReport(ctx context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, r)
	if s.retain > 0 && len(s.reports) > s.retain {
		s.reports = s.reports[len(s.reports)-s.retain:]
	}
	return nil
}

func (s *MemoryStore) GetLatestReport(ctx context.Context) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.reports) == 0 {
		return nil, ErrNoReport
	}
	return s.reports[len(s.reports)-1], nil
}

func (s *MemoryStore) GetLeaderboard(ctx context.Context, category leaderboard.Category, offset, limit int) (*LeaderboardPage, error) {
	if !knownCategory(category) {
		return nil, ErrUnknownCategory
	}

	latest, err := s.GetLatestReport(ctx)
	if err != nil {
		return nil, err
	}
	board, ok := latest.Leaderboard(category)
	if !ok {
		return nil, ErrUnknownCategory
	}
	return &LeaderboardPage{
		ReportID: latest.ID,
		Category: category,
		Offset:   offset,
		Limit:    limit,
		Total:    board.Total,
		Entries:  board.Page(offset, limit),
	}, nil
}

// Count returns the number of retained reports.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.reports)
}

func (s *MemoryStore) Close() error {
	return nil
}
