// Package report folds sealed page results into a run-level report,
// renders it for humans and persists it.
package report

import (
	"time"

	"github.com/raysh454/lumen/internal/audit"
)

// PageCounts are the per-page numbers the summary and totals use.
type PageCounts struct {
	TotalViolations    int `json:"total_violations"`
	ContrastViolations int `json:"contrast_violations"`
	ChecksPassed       int `json:"checks_passed"`
	ChecksFailed       int `json:"checks_failed"`
}

// PageReport is a page result together with its counts.
type PageReport struct {
	audit.PageResult
	Counts PageCounts `json:"counts"`
}

// Totals are pure sums over the pages of a report.
type Totals struct {
	Pages                   int `json:"pages"`
	PagesFailed             int `json:"pages_failed"`
	TotalViolations         int `json:"total_violations"`
	TotalContrastViolations int `json:"total_contrast_violations"`
	TotalChecksPassed       int `json:"total_checks_passed"`
	TotalChecksFailed       int `json:"total_checks_failed"`
}

// Report is the finalized run output.
type Report struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Pages      []PageReport `json:"pages"`
	Totals     Totals       `json:"totals"`
}

// CountPage derives the counts for one page.
func CountPage(p audit.PageResult) PageCounts {
	return PageCounts{
		TotalViolations:    p.TotalViolations(),
		ContrastViolations: p.ContrastViolationCount(),
		ChecksPassed:       p.ChecksPassed(),
		ChecksFailed:       p.ChecksFailed(),
	}
}

// Aggregate builds a report from pages in the order given.
func Aggregate(runID string, startedAt, finishedAt time.Time, pages []audit.PageResult) *Report {
	r := &Report{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Pages:      make([]PageReport, 0, len(pages)),
	}
	for _, p := range pages {
		r.Pages = append(r.Pages, PageReport{PageResult: p, Counts: CountPage(p)})
	}
	r.Totals = ComputeTotals(r.Pages)
	return r
}

// ComputeTotals sums page counts. The result does not depend on order.
func ComputeTotals(pages []PageReport) Totals {
	t := Totals{Pages: len(pages)}
	for _, p := range pages {
		if p.Status != audit.PageAudited {
			t.PagesFailed++
		}
		t.TotalViolations += p.Counts.TotalViolations
		t.TotalContrastViolations += p.Counts.ContrastViolations
		t.TotalChecksPassed += p.Counts.ChecksPassed
		t.TotalChecksFailed += p.Counts.ChecksFailed
	}
	return t
}

// Page returns the page named name, if present.
func (r *Report) Page(name string) (PageReport, bool) {
	for _, p := range r.Pages {
		if p.Name == name {
			return p, true
		}
	}
	return PageReport{}, false
}
