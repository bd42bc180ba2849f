package api

import (
	"github.com/relaymetrics/relay-monitor/pkg/leaderboard"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type CategoryResponse struct {
	Category leaderboard.Category `json:"category"`
	Family   leaderboard.Family   `json:"family"`
	Title    string               `json:"title"`
}

type CategoriesResponse struct {
	ReportID   string              `json:"report_id,omitempty"`
	Categories []*CategoryResponse `json:"categories"`
}
