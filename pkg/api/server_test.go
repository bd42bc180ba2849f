package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/relaymetrics/relay-monitor/pkg/api"
	"github.com/relaymetrics/relay-monitor/pkg/config"
	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
	"github.com/relaymetrics/relay-monitor/pkg/report"
	"github.com/relaymetrics/relay-monitor/pkg/store"
	"github.com/relaymetrics/relay-monitor/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	fakeHost = "localhost"
	fakePort = 1559
)

func testConfig() *config.APIConfig {
	return &config.APIConfig{
		Host:        fakeHost,
		Port:        fakePort,
		MaxPageSize: 3,
	}
}

func publishedStore(t *testing.T) store.Storer {
	var entries []*leaderboard.Entry
	for i := 0; i < 6; i++ {
		entries = append(entries, &leaderboard.Entry{
			OperatorID: fmt.Sprintf("op%d", i),
			Category:   leaderboard.CategoryRelayCount,
			Score:      float64(10 - i),
			Display:    leaderboard.Display{Name: fmt.Sprintf("op%d", i), Domain: types.None[string]()},
		})
	}
	board := leaderboard.Rank(entries, 4)
	board.Category = leaderboard.CategoryRelayCount

	memory := store.NewMemoryStore(0)
	err := memory.PutReport(context.Background(), &report.Report{
		ID:           "report",
		GeneratedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Relays:       6,
		Leaderboards: map[leaderboard.Category]*leaderboard.Leaderboard{leaderboard.CategoryRelayCount: board},
		Metrics:      &report.NetworkMetrics{},
	})
	require.NoError(t, err)
	return memory
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNew(t *testing.T) {
	s := api.New(testConfig(), zap.NewNop(), store.NewMemoryStore(0))
	require.Equal(t, "localhost:1559", s.Srv.Addr)
}

func TestRun(t *testing.T) {
	s := api.New(testConfig(), zap.NewExample(), store.NewMemoryStore(0))

	go func() {
		s.Run(context.Background())
	}()
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestReportNotPublished(t *testing.T) {
	handler := api.New(testConfig(), zap.NewNop(), store.NewMemoryStore(0)).Handler()

	rec := get(t, handler, api.PathReport)
	require.Equal(t, http.StatusNotFound, rec.Code)

	resp := &api.ErrorResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestReport(t *testing.T) {
	handler := api.New(testConfig(), zap.NewNop(), publishedStore(t)).Handler()

	rec := get(t, handler, api.PathReport)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	r := &report.Report{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), r))
	require.Equal(t, "report", r.ID)
	require.Equal(t, 6, r.Relays)
}

func TestLeaderboard(t *testing.T) {
	handler := api.New(testConfig(), zap.NewNop(), publishedStore(t)).Handler()

	tests := []struct {
		name      string
		path      string
		code      int
		wantCount int
		wantFirst string
	}{
		{name: "first page capped", path: "/api/v1/leaderboards/relay_count", code: http.StatusOK, wantCount: 3, wantFirst: "op0"},
		{name: "offset", path: "/api/v1/leaderboards/relay_count?offset=4&limit=2", code: http.StatusOK, wantCount: 2, wantFirst: "op4"},
		{name: "past the end", path: "/api/v1/leaderboards/relay_count?offset=10", code: http.StatusOK, wantCount: 0},
		{name: "bad offset", path: "/api/v1/leaderboards/relay_count?offset=-1", code: http.StatusBadRequest},
		{name: "bad limit", path: "/api/v1/leaderboards/relay_count?limit=abc", code: http.StatusBadRequest},
		{name: "unknown category", path: "/api/v1/leaderboards/fastest", code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, handler, tt.path)
			require.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				return
			}
			page := &store.LeaderboardPage{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), page))
			require.Equal(t, 6, page.Total)
			require.Len(t, page.Entries, tt.wantCount)
			if tt.wantCount > 0 {
				require.Equal(t, tt.wantFirst, page.Entries[0].OperatorID)
			}
		})
	}
}

func TestCategories(t *testing.T) {
	handler := api.New(testConfig(), zap.NewNop(), publishedStore(t)).Handler()

	rec := get(t, handler, api.PathLeaderboards)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := &api.CategoriesResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	require.Equal(t, "report", resp.ReportID)
	require.Len(t, resp.Categories, len(leaderboard.Definitions()))
	require.Equal(t, leaderboard.CategoryBandwidth, resp.Categories[0].Category)
}

func TestPrometheus(t *testing.T) {
	handler := api.New(testConfig(), zap.NewNop(), store.NewMemoryStore(0)).Handler()

	rec := get(t, handler, api.PathPrometheus)
	require.Equal(t, http.StatusOK, rec.Code)
}
