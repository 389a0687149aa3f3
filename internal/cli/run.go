package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/raysh454/lumen/internal/app"
	"github.com/raysh454/lumen/internal/audit"
	"github.com/raysh454/lumen/internal/config"
	"github.com/raysh454/lumen/internal/logging"
	"github.com/raysh454/lumen/internal/report"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Audit every configured page",
		Long: `Audit every page listed in the configuration, in order, with one
browser tab. A page that fails to load is recorded and the run continues.

Exit codes:
  0 - Run completed (issues found or not, unless --fail-on-issues)
  1 - Configuration, browser start or persistence error
  2 - Run completed with failing contrast checks or contrast violations
      and --fail-on-issues was given

Examples:
  lumen run --config audit.yaml
  lumen run -c audit.yaml --out results --headless=false
  LUMEN_BASE_URL=http://staging.local lumen run -c audit.yaml --no-progress`,
		RunE: runAudit,
	}

	cmd.Flags().StringP("config", "c", "audit.yaml", "Path to the audit configuration")
	cmd.Flags().StringP("out", "o", "", "Output directory (overrides output_dir)")
	cmd.Flags().Bool("headless", true, "Run the browser headless")
	cmd.Flags().Bool("no-progress", false, "Disable the progress bar")
	cmd.Flags().Bool("json", false, "Print report.json to stdout instead of the summary")
	cmd.Flags().Bool("fail-on-issues", false, "Exit 2 when any contrast issue is found")
	return cmd
}

func runAudit(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		cfg.OutputDir = out
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless, _ = cmd.Flags().GetBool("headless")
	}

	logger := newLogger(cmd, cfg.LogLevel)
	a := app.NewApplication(cfg, logger)

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	if !noProgress && isInteractive() {
		bar := newProgressBar(len(cfg.Jobs))
		a.Progress = func(done, total int, page audit.PageResult) {
			bar.Describe(fmt.Sprintf("%-18s", page.Name))
			_ = bar.Set(done)
			if done == total {
				_ = bar.Finish()
			}
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := a.Run(ctx)
	if rep == nil {
		return err
	}
	if err != nil && !errors.Is(err, ctx.Err()) {
		// Persistence failed; the report was not stored.
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(rep); encErr != nil {
			return encErr
		}
	} else if rerr := report.RenderSummary(cmd.OutOrStdout(), rep); rerr != nil {
		return rerr
	}
	if err != nil {
		logger.Warn("run interrupted", logging.Field{Key: "pages_sealed", Value: len(rep.Pages)})
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\nReport written to %s\n", cfg.OutputDir)

	failOnIssues, _ := cmd.Flags().GetBool("fail-on-issues")
	if failOnIssues && (rep.Totals.TotalChecksFailed > 0 || rep.Totals.TotalContrastViolations > 0) {
		return &ExitError{Code: exitIssues}
	}
	return nil
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(18),
		progressbar.OptionSetDescription("auditing"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
	)
}
