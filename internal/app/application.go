// Package app wires configuration into a browser session, scanner,
// orchestrator and persisters, and runs one audit end to end.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/lumen/internal/audit"
	"github.com/raysh454/lumen/internal/browser"
	"github.com/raysh454/lumen/internal/config"
	"github.com/raysh454/lumen/internal/history"
	"github.com/raysh454/lumen/internal/logging"
	"github.com/raysh454/lumen/internal/metrics"
	"github.com/raysh454/lumen/internal/report"
	"github.com/raysh454/lumen/internal/scanner"
)

var (
	// ErrNoJobs is returned by Run when the configuration lists no pages.
	ErrNoJobs = errors.New("no jobs configured")
	// ErrBrowserStart wraps every failure to bring up the browser.
	ErrBrowserStart = errors.New("browser start failed")
)

// DriverFactory opens the browser session for a run.
type DriverFactory func(cfg browser.Config, logger logging.Logger) (browser.Driver, error)

// ScannerFactory builds the rule scanner on top of an open driver.
type ScannerFactory func(cfg scanner.AxeConfig, d browser.Driver, logger logging.Logger) (scanner.Scanner, error)

// ChromeDriverFactory is the production DriverFactory.
func ChromeDriverFactory(cfg browser.Config, logger logging.Logger) (browser.Driver, error) {
	return browser.NewChromeDriver(cfg, logger)
}

// AxeScannerFactory is the production ScannerFactory.
func AxeScannerFactory(cfg scanner.AxeConfig, d browser.Driver, logger logging.Logger) (scanner.Scanner, error) {
	return scanner.NewAxe(cfg, d, logger)
}

// Application is the runtime state for one audit invocation. Pass it
// already-built parts so it is easy to test.
type Application struct {
	Config *Config
	Logger logging.Logger

	NewDriver  DriverFactory
	NewScanner ScannerFactory

	// Progress, when set, is called after each page is sealed.
	Progress func(done, total int, page audit.PageResult)

	now func() time.Time
}

// Config is the application's view of the loaded configuration.
type Config = config.Config

// NewApplication constructs an Application with the production factories.
func NewApplication(cfg *Config, logger logging.Logger) *Application {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Application{
		Config:     cfg,
		Logger:     logger,
		NewDriver:  ChromeDriverFactory,
		NewScanner: AxeScannerFactory,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run audits every configured page and persists the report. Individual
// page failures never fail the run. A canceled ctx stops the run between
// pages; the pages sealed so far are still persisted and returned along
// with ctx's error. Persistence failures are fatal.
func (a *Application) Run(ctx context.Context) (*report.Report, error) {
	if a == nil || a.Config == nil {
		return nil, errors.New("application is nil")
	}
	cfg := a.Config
	jobs, err := cfg.ResolvedJobs()
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}

	runID := uuid.New().String()
	log := a.Logger.With(logging.Field{Key: "run_id", Value: runID})

	d, err := a.NewDriver(cfg.Browser, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrowserStart, err)
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			log.Warn("browser close failed", logging.Field{Key: "error", Value: cerr.Error()})
		}
	}()

	var sc scanner.Scanner
	if cfg.Scanner.Enabled && a.NewScanner != nil {
		sc, err = a.NewScanner(cfg.Scanner.AxeConfig, d, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("scanner: %w", err)
		}
	}

	opts := cfg.AuditOptions()
	opts.Progress = a.Progress
	orch, err := audit.NewOrchestrator(d, sc, opts, a.Logger)
	if err != nil {
		return nil, err
	}

	persister, closeStores, err := a.persisters()
	if err != nil {
		return nil, err
	}
	defer closeStores()

	log.Info("audit run starting", logging.Field{Key: "pages", Value: len(jobs)})
	started := a.now()
	pages, runErr := orch.Run(ctx, jobs)
	rep := report.Aggregate(runID, started, a.now(), pages)

	// Persist even when ctx was canceled so the sealed pages are kept.
	if err := persister.Persist(context.WithoutCancel(ctx), rep); err != nil {
		log.Error("persisting report failed", logging.Field{Key: "error", Value: err.Error()})
		return rep, err
	}

	log.Info("audit run finished",
		logging.Field{Key: "pages", Value: rep.Totals.Pages},
		logging.Field{Key: "pages_failed", Value: rep.Totals.PagesFailed},
		logging.Field{Key: "total_violations", Value: rep.Totals.TotalViolations},
		logging.Field{Key: "checks_failed", Value: rep.Totals.TotalChecksFailed})
	return rep, runErr
}

// persisters builds the chain: page and report files, then history, then
// the metrics textfile. The returned func closes anything opened here.
func (a *Application) persisters() (report.Persister, func(), error) {
	cfg := a.Config
	chain := []report.Persister{report.NewFilePersister(cfg.OutputDir, cfg.Thumbnails, a.Logger)}
	closeFn := func() {}

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB, a.Logger)
		if err != nil {
			return nil, closeFn, fmt.Errorf("%w: open history: %w", report.ErrPersistence, err)
		}
		chain = append(chain, store)
		closeFn = func() { store.Close() }
	}

	if path := cfg.MetricsTextfile(); path != "" {
		rec := metrics.NewRecorder()
		rec.Textfile = path
		chain = append(chain, rec)
	}
	return report.Chain(chain...), closeFn, nil
}
