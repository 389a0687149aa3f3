package report

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffLine is one line of a summary diff.
type DiffLine struct {
	Op   string `json:"op"` // "+", "-" or " "
	Text string `json:"text"`
}

// SummaryDiff compares the rendered summaries of two runs.
type SummaryDiff struct {
	BaseRunID string     `json:"base_run_id"`
	HeadRunID string     `json:"head_run_id"`
	Lines     []DiffLine `json:"lines"`
	Added     int        `json:"added"`
	Removed   int        `json:"removed"`
	Totals    TotalsDiff `json:"totals"`
}

// TotalsDiff is head minus base for each total.
type TotalsDiff struct {
	Pages                   int `json:"pages"`
	PagesFailed             int `json:"pages_failed"`
	TotalViolations         int `json:"total_violations"`
	TotalContrastViolations int `json:"total_contrast_violations"`
	TotalChecksPassed       int `json:"total_checks_passed"`
	TotalChecksFailed       int `json:"total_checks_failed"`
}

// Changed reports whether the summaries differ at all.
func (d *SummaryDiff) Changed() bool { return d.Added > 0 || d.Removed > 0 }

// String renders the diff in unified style without hunk headers.
func (d *SummaryDiff) String() string {
	var sb strings.Builder
	for _, l := range d.Lines {
		sb.WriteString(l.Op)
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DiffReports line-diffs the summaries of base and head.
func DiffReports(base, head *Report) *SummaryDiff {
	d := DiffSummaries(SummaryString(base), SummaryString(head))
	d.BaseRunID = base.RunID
	d.HeadRunID = head.RunID
	d.Totals = TotalsDiff{
		Pages:                   head.Totals.Pages - base.Totals.Pages,
		PagesFailed:             head.Totals.PagesFailed - base.Totals.PagesFailed,
		TotalViolations:         head.Totals.TotalViolations - base.Totals.TotalViolations,
		TotalContrastViolations: head.Totals.TotalContrastViolations - base.Totals.TotalContrastViolations,
		TotalChecksPassed:       head.Totals.TotalChecksPassed - base.Totals.TotalChecksPassed,
		TotalChecksFailed:       head.Totals.TotalChecksFailed - base.Totals.TotalChecksFailed,
	}
	return d
}

// DiffSummaries computes a line-level diff between two rendered summaries.
func DiffSummaries(base, head string) *SummaryDiff {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(base, head)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	out := &SummaryDiff{}
	for _, d := range diffs {
		var op string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = "+"
		case diffmatchpatch.DiffDelete:
			op = "-"
		case diffmatchpatch.DiffEqual:
			op = " "
		}
		for _, line := range splitLines(d.Text) {
			out.Lines = append(out.Lines, DiffLine{Op: op, Text: line})
			switch op {
			case "+":
				out.Added++
			case "-":
				out.Removed++
			}
		}
	}
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
