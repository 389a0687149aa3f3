// Package metrics exposes audit results as Prometheus gauges, either through
// a node_exporter textfile written after each run or over HTTP.
package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/raysh454/lumen/internal/report"
)

const namespace = "a11y_audit"

// TextfileName is the default file written next to report.json.
const TextfileName = "a11y_audit.prom"

// Recorder owns a private registry so several recorders can coexist in
// one process (and in tests).
type Recorder struct {
	Registry *prometheus.Registry

	pages              prometheus.Gauge
	pagesFailed        prometheus.Gauge
	violations         *prometheus.GaugeVec
	contrastViolations *prometheus.GaugeVec
	checks             *prometheus.GaugeVec
	runDuration        prometheus.Gauge
	lastRun            prometheus.Gauge
	runsRecorded       prometheus.Counter

	// Textfile, when set, makes Persist write the registry to that path.
	Textfile string
}

func NewRecorder() *Recorder {
	r := &Recorder{
		Registry: prometheus.NewRegistry(),
		pages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pages",
			Help:      "Pages in the last audit run",
		}),
		pagesFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pages_failed",
			Help:      "Pages that failed to load in the last audit run",
		}),
		violations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "violations",
			Help:      "Automated rule violations per page in the last run",
		}, []string{"page"}),
		contrastViolations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contrast_violations",
			Help:      "Automated contrast rule violations per page in the last run",
		}, []string{"page"}),
		checks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contrast_checks",
			Help:      "Manual contrast checks per page and result in the last run",
		}, []string{"page", "result"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last audit run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last audit run finished",
		}),
		runsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_recorded_total",
			Help:      "Audit runs recorded by this process",
		}),
	}
	r.Registry.MustRegister(
		r.pages, r.pagesFailed, r.violations, r.contrastViolations,
		r.checks, r.runDuration, r.lastRun, r.runsRecorded,
	)
	return r
}

// Observe replaces the per-page gauges with the values from rep.
func (r *Recorder) Observe(rep *report.Report) {
	r.violations.Reset()
	r.contrastViolations.Reset()
	r.checks.Reset()

	r.pages.Set(float64(rep.Totals.Pages))
	r.pagesFailed.Set(float64(rep.Totals.PagesFailed))
	for _, p := range rep.Pages {
		r.violations.WithLabelValues(p.Name).Set(float64(p.Counts.TotalViolations))
		r.contrastViolations.WithLabelValues(p.Name).Set(float64(p.Counts.ContrastViolations))
		r.checks.WithLabelValues(p.Name, "pass").Set(float64(p.Counts.ChecksPassed))
		r.checks.WithLabelValues(p.Name, "fail").Set(float64(p.Counts.ChecksFailed))
	}
	if !rep.FinishedAt.IsZero() {
		r.runDuration.Set(rep.FinishedAt.Sub(rep.StartedAt).Seconds())
		r.lastRun.Set(float64(rep.FinishedAt.Unix()))
	}
	r.runsRecorded.Inc()
}

// Persist observes rep and, if Textfile is set, writes the registry there.
func (r *Recorder) Persist(_ context.Context, rep *report.Report) error {
	if rep == nil {
		return fmt.Errorf("%w: nil report", report.ErrPersistence)
	}
	r.Observe(rep)
	if r.Textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.Textfile), 0o755); err != nil {
		return fmt.Errorf("%w: metrics dir: %w", report.ErrPersistence, err)
	}
	if err := prometheus.WriteToTextfile(r.Textfile, r.Registry); err != nil {
		return fmt.Errorf("%w: metrics textfile: %w", report.ErrPersistence, err)
	}
	return nil
}
