// Package scanner runs an automated DOM accessibility rule engine against
// the page currently loaded in the browser and reports its violations.
package scanner

import (
	"context"
	"errors"
	"strings"
)

// ErrScanner wraps every failure to obtain scanner results.
var ErrScanner = errors.New("scanner failed")

// ContrastRule is the rule id fragment the audit treats as a contrast
// finding; it also matches "color-contrast-enhanced".
const ContrastRule = "color-contrast"

// Scanner is the capability contract for a rule engine.
type Scanner interface {
	Run(ctx context.Context) (*Result, error)
}

// Result is the scanner's violation list, in the order it reported them.
type Result struct {
	Engine     string      `json:"engine,omitempty"`
	Violations []Violation `json:"violations"`
}

// Violation is one failing rule. The engine treats it as opaque beyond
// filtering on ID and counting.
type Violation struct {
	ID        string `json:"id"`
	Impact    string `json:"impact"`
	NodeCount int    `json:"node_count"`
	Help      string `json:"help"`
	HelpURL   string `json:"help_url,omitempty"`
	// Nodes is a bounded sample of the affected nodes.
	Nodes []Node `json:"nodes,omitempty"`
}

// Node is a trimmed description of an affected element.
type Node struct {
	Target         string `json:"target"`
	HTML           string `json:"html"`
	FailureSummary string `json:"failure_summary,omitempty"`
}

// IsContrast reports whether v comes from a contrast rule.
func (v Violation) IsContrast() bool {
	return strings.Contains(v.ID, ContrastRule)
}

// ContrastViolations returns the contrast subset of vs, preserving order.
func ContrastViolations(vs []Violation) []Violation {
	out := make([]Violation, 0)
	for _, v := range vs {
		if v.IsContrast() {
			out = append(out, v)
		}
	}
	return out
}
