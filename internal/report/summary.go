package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/raysh454/lumen/internal/audit"
)

const rule = "============================================================"

// RenderSummary writes the human-readable run summary.
func RenderSummary(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, rule)
	fmt.Fprintln(bw, "SUMMARY")
	fmt.Fprintln(bw, rule)

	for _, p := range r.Pages {
		fmt.Fprintf(bw, "\n%s (%s):\n", p.Name, p.URL)
		if p.Status != audit.PageAudited {
			fmt.Fprintf(bw, "  Status: %s\n", p.Status)
		}
		for _, e := range p.Errors {
			fmt.Fprintf(bw, "  ! %s: %s\n", e.Kind, e.Message)
		}
		fmt.Fprintf(bw, "  Total violations: %d\n", p.Counts.TotalViolations)
		fmt.Fprintf(bw, "  Contrast violations: %d\n", p.Counts.ContrastViolations)
		fmt.Fprintf(bw, "  Contrast checks: %d passed, %d failed\n", p.Counts.ChecksPassed, p.Counts.ChecksFailed)
	}

	t := r.Totals
	fmt.Fprintf(bw, "\nPages audited: %d (%d failed to load)\n", t.Pages, t.PagesFailed)
	fmt.Fprintf(bw, "Total violations across all pages: %d\n", t.TotalViolations)
	fmt.Fprintf(bw, "Total contrast violations: %d\n", t.TotalContrastViolations)
	fmt.Fprintf(bw, "Passing WCAG AA: %d\n", t.TotalChecksPassed)
	fmt.Fprintf(bw, "Failing WCAG AA: %d\n", t.TotalChecksFailed)

	if t.TotalChecksFailed > 0 {
		fmt.Fprintln(bw, "\nCONTRAST ISSUES FOUND:")
		for _, p := range r.Pages {
			for _, c := range p.FailingChecks() {
				desc := c.Description
				if desc == "" {
					desc = c.Selector
				}
				fmt.Fprintf(bw, "\n  • %s [%s]\n", desc, p.Name)
				fmt.Fprintf(bw, "    Selector: %s\n", c.Selector)
				fmt.Fprintf(bw, "    Contrast: %.2f:1 (needs %.1f:1)\n", c.Ratio, c.Required)
				fmt.Fprintf(bw, "    Color: %s on %s\n", c.Foreground, c.Background)
				if c.Text != "" {
					fmt.Fprintf(bw, "    Text: %q\n", c.Text)
				}
			}
		}
	}

	if t.TotalContrastViolations > 0 {
		fmt.Fprintln(bw, "\nAUTOMATED CONTRAST VIOLATIONS:")
		for _, p := range r.Pages {
			for _, v := range p.ContrastViolations {
				fmt.Fprintf(bw, "\n  %s [%s]\n", v.Help, p.Name)
				fmt.Fprintf(bw, "     Impact: %s\n", strings.ToUpper(v.Impact))
				fmt.Fprintf(bw, "     Affected elements: %d\n", v.NodeCount)
				for i, n := range v.Nodes {
					fmt.Fprintf(bw, "     Element %d: %s\n", i+1, n.Target)
					if n.HTML != "" {
						fmt.Fprintf(bw, "       HTML: %s\n", n.HTML)
					}
					for _, line := range strings.Split(n.FailureSummary, "\n") {
						if line = strings.TrimSpace(line); line != "" {
							fmt.Fprintf(bw, "       %s\n", line)
						}
					}
				}
			}
		}
	}

	return bw.Flush()
}

// SummaryString is RenderSummary into a string.
func SummaryString(r *Report) string {
	var sb strings.Builder
	_ = RenderSummary(&sb, r)
	return sb.String()
}
