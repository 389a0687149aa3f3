package audit

import (
	"time"

	"github.com/raysh454/lumen/internal/contrast"
	"github.com/raysh454/lumen/internal/scanner"
)

// Selector names one element to sample on a page.
type Selector struct {
	Selector    string `json:"selector" mapstructure:"selector" yaml:"selector"`
	Description string `json:"description" mapstructure:"description" yaml:"description"`
}

// Job is one page to audit.
type Job struct {
	Name      string     `json:"name" mapstructure:"name" yaml:"name"`
	URL       string     `json:"url" mapstructure:"url" yaml:"url"`
	Selectors []Selector `json:"selectors" mapstructure:"selectors" yaml:"selectors"`
}

// PageStatus is the overall outcome of auditing one page.
type PageStatus string

const (
	PageAudited          PageStatus = "audited"
	PageNavigationFailed PageStatus = "navigation_failed"
)

// ErrorKind classifies a non-fatal failure recorded on a page.
type ErrorKind string

const (
	KindNavigationFailed ErrorKind = "navigation_failed"
	KindScannerFailed    ErrorKind = "scanner_failed"
	KindScreenshotFailed ErrorKind = "screenshot_failed"
	// KindInterrupted marks a page whose audit stopped on cancellation.
	KindInterrupted      ErrorKind = "interrupted"
)

// PageError is a marker left on a page by a failed step.
type PageError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// PageResult is the sealed outcome of one Job. Violations and Checks keep
// the order in which they were produced.
type PageResult struct {
	Name   string      `json:"name"`
	URL    string      `json:"url"`
	Status PageStatus  `json:"status"`
	Errors []PageError `json:"errors,omitempty"`

	// Violations is the scanner's full list; ContrastViolations is the
	// contrast subset of it.
	Violations         []scanner.Violation `json:"violations"`
	ContrastViolations []scanner.Violation `json:"contrast_violations"`

	// Checks are the manual per-selector samples. They are independent of
	// the scanner findings and never merged with them.
	Checks []contrast.Check `json:"contrast_checks"`

	// Screenshot is the PNG file name relative to the artifact directory.
	Screenshot string `json:"screenshot,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// HasError reports whether a marker of kind was recorded.
func (p PageResult) HasError(kind ErrorKind) bool {
	for _, e := range p.Errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func (p PageResult) TotalViolations() int         { return len(p.Violations) }
func (p PageResult) ContrastViolationCount() int { return len(p.ContrastViolations) }

// ChecksPassed counts passing manual checks.
func (p PageResult) ChecksPassed() int {
	n := 0
	for _, c := range p.Checks {
		if c.Passes {
			n++
		}
	}
	return n
}

// ChecksFailed counts failing manual checks.
func (p PageResult) ChecksFailed() int {
	return len(p.Checks) - p.ChecksPassed()
}

// FailingChecks returns the failing manual checks in order.
func (p PageResult) FailingChecks() []contrast.Check {
	var out []contrast.Check
	for _, c := range p.Checks {
		if !c.Passes {
			out = append(out, c)
		}
	}
	return out
}
