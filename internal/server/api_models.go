package server

import "github.com/raysh454/lumen/internal/history"

// ListRunsResponse wraps the run list so fields can be added later.
type ListRunsResponse struct {
	Runs []history.RunSummary `json:"runs"`
}

// PageHistoryResponse is the per-run trend of one page.
type PageHistoryResponse struct {
	Page   string              `json:"page"`
	Trends []history.PageTrend `json:"trends"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}
