// Package audit drives a browser through an ordered list of pages, runs the
// automated rule scanner and the manual per-selector contrast checks, and
// seals one PageResult per page.
package audit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/raysh454/lumen/internal/browser"
	"github.com/raysh454/lumen/internal/contrast"
	"github.com/raysh454/lumen/internal/fsutil"
	"github.com/raysh454/lumen/internal/logging"
	"github.com/raysh454/lumen/internal/scanner"
)

// Options tune how each page is visited.
type Options struct {
	WaitPolicy        browser.WaitPolicy
	NavigationTimeout time.Duration
	// SettleDelay is slept after navigation so late client-side rendering
	// finishes before styles are read.
	SettleDelay time.Duration

	// ArtifactDir receives one screenshot per page; empty disables them.
	ArtifactDir        string
	FullPageScreenshot bool

	// Progress, when set, is called after each page is sealed.
	Progress func(done, total int, page PageResult)
}

func DefaultOptions() Options {
	return Options{
		WaitPolicy:         browser.WaitNetworkIdle,
		NavigationTimeout:  30 * time.Second,
		SettleDelay:        time.Second,
		FullPageScreenshot: true,
	}
}

const textExcerptLen = 50

// Orchestrator runs audit jobs one at a time against a single browser
// session. It is not safe for concurrent use.
type Orchestrator struct {
	driver   browser.Driver
	scanner  scanner.Scanner
	resolver *BackgroundResolver
	opts     Options
	logger   logging.Logger

	now func() time.Time
}

// NewOrchestrator wires a driver and an optional scanner. A nil scanner
// disables the automated pass; manual checks still run.
func NewOrchestrator(d browser.Driver, s scanner.Scanner, opts Options, logger logging.Logger) (*Orchestrator, error) {
	if d == nil {
		return nil, errors.New("audit: nil driver")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.WaitPolicy == "" {
		opts.WaitPolicy = browser.WaitNetworkIdle
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultOptions().NavigationTimeout
	}
	return &Orchestrator{
		driver:   d,
		scanner:  s,
		resolver: NewBackgroundResolver(d),
		opts:     opts,
		logger:   logger.With(logging.Field{Key: "component", Value: "audit_orchestrator"}),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run audits jobs in order. A failing page never stops the run; only
// cancellation of ctx does, in which case the pages sealed so far are
// returned together with ctx's error. The page in progress when ctx is
// canceled is dropped.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) ([]PageResult, error) {
	results := make([]PageResult, 0, len(jobs))
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("audit run canceled",
				logging.Field{Key: "completed_pages", Value: len(results)},
				logging.Field{Key: "remaining_pages", Value: len(jobs) - i})
			return results, err
		}
		page := o.AuditPage(ctx, job)
		if err := ctx.Err(); err != nil {
			// A page cut short is not sealed; its markers would be noise.
			o.logger.Warn("audit run canceled mid-page, page discarded",
				logging.Field{Key: "page", Value: job.Name},
				logging.Field{Key: "completed_pages", Value: len(results)})
			return results, err
		}
		results = append(results, page)
		if o.opts.Progress != nil {
			o.opts.Progress(i+1, len(jobs), page)
		}
	}
	return results, nil
}

// AuditPage visits one page and returns its sealed result.
func (o *Orchestrator) AuditPage(ctx context.Context, job Job) PageResult {
	log := o.logger.With(
		logging.Field{Key: "page", Value: job.Name},
		logging.Field{Key: "url", Value: job.URL},
	)
	page := PageResult{
		Name:               job.Name,
		URL:                job.URL,
		Status:             PageAudited,
		Violations:         []scanner.Violation{},
		ContrastViolations: []scanner.Violation{},
		Checks:             []contrast.Check{},
		StartedAt:          o.now(),
	}

	log.Info("auditing page")

	if err := o.driver.Navigate(ctx, job.URL, o.opts.WaitPolicy, o.opts.NavigationTimeout); err != nil {
		log.Error("navigation failed", logging.Field{Key: "error", Value: err.Error()})
		page.Status = PageNavigationFailed
		page.Errors = append(page.Errors, PageError{Kind: KindNavigationFailed, Message: err.Error()})
		page.FinishedAt = o.now()
		return page
	}

	if o.opts.SettleDelay > 0 {
		select {
		case <-time.After(o.opts.SettleDelay):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		page.Errors = append(page.Errors, PageError{Kind: KindInterrupted, Message: err.Error()})
		page.FinishedAt = o.now()
		return page
	}

	if o.opts.ArtifactDir != "" {
		name := fsutil.Slug(job.Name) + ".png"
		if err := o.driver.Screenshot(ctx, filepath.Join(o.opts.ArtifactDir, name), o.opts.FullPageScreenshot); err != nil {
			log.Warn("screenshot failed", logging.Field{Key: "error", Value: err.Error()})
			page.Errors = append(page.Errors, PageError{Kind: KindScreenshotFailed, Message: err.Error()})
		} else {
			page.Screenshot = name
		}
	}

	if o.scanner != nil {
		res, err := o.scanner.Run(ctx)
		if err != nil {
			log.Warn("scanner failed, continuing with manual checks", logging.Field{Key: "error", Value: err.Error()})
			page.Errors = append(page.Errors, PageError{Kind: KindScannerFailed, Message: err.Error()})
		} else if res != nil {
			page.Violations = append(page.Violations, res.Violations...)
			page.ContrastViolations = scanner.ContrastViolations(res.Violations)
		}
	}

	for _, sel := range job.Selectors {
		check, err := o.CheckSelector(ctx, sel)
		if err != nil {
			log.Warn("contrast check skipped",
				logging.Field{Key: "selector", Value: sel.Selector},
				logging.Field{Key: "description", Value: sel.Description},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		page.Checks = append(page.Checks, check)
		log.Debug("contrast check",
			logging.Field{Key: "selector", Value: sel.Selector},
			logging.Field{Key: "ratio", Value: check.Ratio},
			logging.Field{Key: "required", Value: check.Required},
			logging.Field{Key: "passes", Value: check.Passes})
	}

	page.FinishedAt = o.now()
	log.Info("page audited",
		logging.Field{Key: "violations", Value: page.TotalViolations()},
		logging.Field{Key: "contrast_violations", Value: page.ContrastViolationCount()},
		logging.Field{Key: "checks_passed", Value: page.ChecksPassed()},
		logging.Field{Key: "checks_failed", Value: page.ChecksFailed()})
	return page
}

// CheckSelector samples the first visible element matching sel on the
// current page. Errors wrap browser.ErrElementUnresolved or
// contrast.ErrColorUnresolved; either way the caller skips the element.
func (o *Orchestrator) CheckSelector(ctx context.Context, sel Selector) (contrast.Check, error) {
	el, err := o.driver.LocateVisible(ctx, sel.Selector)
	if err != nil {
		return contrast.Check{}, asUnresolved(err)
	}
	if el == nil {
		return contrast.Check{}, fmt.Errorf("%w: no visible match for %q", browser.ErrElementUnresolved, sel.Selector)
	}

	cs, err := browser.ReadComputedStyle(ctx, o.driver, el)
	if err != nil {
		return contrast.Check{}, asUnresolved(err)
	}
	fg := contrast.ParseColor(cs.Color)
	if fg.Transparent {
		return contrast.Check{}, fmt.Errorf("%w: foreground %q", contrast.ErrColorUnresolved, cs.Color)
	}
	bg, err := o.resolver.resolveFrom(ctx, el, contrast.ParseColor(cs.BackgroundColor))
	if err != nil {
		return contrast.Check{}, err
	}

	return contrast.Evaluate(contrast.Sample{
		Selector:    sel.Selector,
		Description: sel.Description,
		Text:        excerpt(cs.Text, textExcerptLen),
		Foreground:  fg,
		Background:  bg,
		FontSizePx:  contrast.ParseFontSize(cs.FontSize),
		FontWeight:  contrast.ParseFontWeight(cs.FontWeight),
	})
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
