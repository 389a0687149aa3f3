// Package cli holds the cobra commands behind the lumen binary.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raysh454/lumen/internal/logging"
)

// Version is set via ldflags during build.
var Version = "dev"

// ExitError carries a specific process exit code. Message, if set, is
// printed to stderr.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

const (
	exitError  = 1
	exitIssues = 2
)

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lumen",
		Short: "lumen - WCAG colour contrast audit for rendered web pages",
		Long: `lumen drives a headless browser through a list of pages, runs the
axe-core rule engine and per-selector WCAG 2.x contrast checks, and writes
a JSON report, screenshots and a text summary for each run.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(runCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(initCmd())
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintf(stderr, "Error: %s\n", exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}

// newLogger writes JSON lines to stderr so stdout carries only the summary.
func newLogger(cmd *cobra.Command, configured string) logging.Logger {
	level := configured
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		level = flag
	}
	return logging.NewLogger(cmd.ErrOrStderr(), "lumen", logging.ParseLevel(level))
}

// isInteractive reports whether stderr is a terminal outside CI.
func isInteractive() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
