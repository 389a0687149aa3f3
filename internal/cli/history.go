package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/lumen/internal/config"
	"github.com/raysh454/lumen/internal/history"
	"github.com/raysh454/lumen/internal/report"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect archived audit runs",
		Long: `Inspect runs recorded in the history database. Any run ID argument
accepts "latest" for the most recent run.

Examples:
  lumen history list --limit 5
  lumen history show latest
  lumen history diff <base-run> latest
  lumen history page "admin login"
  lumen history delete <run>`,
	}
	cmd.PersistentFlags().String("db", "", "History database (default: history_db from config)")
	cmd.PersistentFlags().StringP("config", "c", "audit.yaml", "Configuration to read history_db from")
	cmd.PersistentFlags().Bool("json", false, "Print JSON instead of text")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  withStore(historyList),
	}
	list.Flags().Int("limit", 20, "Maximum number of runs")

	show := &cobra.Command{
		Use:   "show <run>",
		Short: "Print the summary of one run",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(historyShow),
	}

	diff := &cobra.Command{
		Use:   "diff <base> <head>",
		Short: "Diff the summaries of two runs",
		Args:  cobra.ExactArgs(2),
		RunE:  withStore(historyDiff),
	}

	page := &cobra.Command{
		Use:   "page <name>",
		Short: "Show one page's counts across runs",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(historyPage),
	}
	page.Flags().Int("limit", 20, "Maximum number of runs")

	del := &cobra.Command{
		Use:   "delete <run>",
		Short: "Remove one run and its pages from the history",
		Args:  cobra.ExactArgs(1),
		RunE:  withStore(historyDelete),
	}

	cmd.AddCommand(list, show, diff, page, del)
	return cmd
}

type storeRunE func(cmd *cobra.Command, args []string, store *history.Store) error

// withStore opens the history database for the duration of one command.
func withStore(fn storeRunE) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		path, err := historyPath(cmd)
		if err != nil {
			return err
		}
		store, err := history.Open(path, newLogger(cmd, ""))
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd, args, store)
	}
}

func historyPath(cmd *cobra.Command) (string, error) {
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		return db, nil
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return "", err
	}
	if cfg.HistoryDB == "" {
		return "", &ExitError{Code: exitError, Message: "history is disabled (history_db is empty); pass --db"}
	}
	return cfg.HistoryDB, nil
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func historyList(cmd *cobra.Command, _ []string, store *history.Store) error {
	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tPAGES\tFAILED\tVIOLATIONS\tCONTRAST\tCHECKS PASS/FAIL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d/%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Totals.Pages, r.Totals.PagesFailed,
			r.Totals.TotalViolations, r.Totals.TotalContrastViolations,
			r.Totals.TotalChecksPassed, r.Totals.TotalChecksFailed)
	}
	return tw.Flush()
}

func historyShow(cmd *cobra.Command, args []string, store *history.Store) error {
	rep, err := store.GetReport(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return writeJSON(cmd.OutOrStdout(), rep)
	}
	return report.RenderSummary(cmd.OutOrStdout(), rep)
}

func historyDiff(cmd *cobra.Command, args []string, store *history.Store) error {
	base, err := store.GetReport(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	head, err := store.GetReport(cmd.Context(), args[1])
	if err != nil {
		return err
	}
	d := report.DiffReports(base, head)
	if wantJSON(cmd) {
		return writeJSON(cmd.OutOrStdout(), d)
	}
	out := cmd.OutOrStdout()
	if !d.Changed() {
		fmt.Fprintf(out, "No differences between %s and %s\n", d.BaseRunID, d.HeadRunID)
		return nil
	}
	fmt.Fprintf(out, "--- %s\n+++ %s\n", d.BaseRunID, d.HeadRunID)
	_, err = io.WriteString(out, d.String())
	return err
}

func historyPage(cmd *cobra.Command, args []string, store *history.Store) error {
	limit, _ := cmd.Flags().GetInt("limit")
	trends, err := store.PageHistory(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return writeJSON(cmd.OutOrStdout(), trends)
	}
	if len(trends) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded for page %q.\n", args[0])
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tVIOLATIONS\tCONTRAST\tCHECKS PASS/FAIL")
	for _, t := range trends {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d/%d\n",
			t.RunID, t.StartedAt.Format(time.RFC3339), t.Status,
			t.Counts.TotalViolations, t.Counts.ContrastViolations,
			t.Counts.ChecksPassed, t.Counts.ChecksFailed)
	}
	return tw.Flush()
}

func historyDelete(cmd *cobra.Command, args []string, store *history.Store) error {
	id, err := store.ResolveRunID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteRun(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", id)
	return nil
}
