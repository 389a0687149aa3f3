package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raysh454/lumen/internal/config"
	"github.com/raysh454/lumen/internal/history"
	"github.com/raysh454/lumen/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history over HTTP",
		Long: `Serve a read-only JSON API over the history database, plus the
Prometheus /metrics endpoint and the artifacts of the output directory.

Examples:
  lumen serve
  lumen serve --addr :9000 --db .lumen/history.db --artifacts audit-results`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringP("config", "c", "audit.yaml", "Configuration to read defaults from")
	cmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
	cmd.Flags().String("db", "", "History database (default: history_db from config)")
	cmd.Flags().String("artifacts", "", "Directory of screenshots and page JSON (default: output_dir)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.DefaultConfig()
	path, _ := cmd.Flags().GetString("config")
	if _, err := os.Stat(path); err == nil || cmd.Flags().Changed("config") {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	db, _ := cmd.Flags().GetString("db")
	if db == "" {
		db = cfg.HistoryDB
	}
	if db == "" {
		return &ExitError{Code: exitError, Message: "no history database; pass --db"}
	}
	artifacts, _ := cmd.Flags().GetString("artifacts")
	if artifacts == "" {
		artifacts = cfg.OutputDir
	}

	logger := newLogger(cmd, cfg.LogLevel)
	store, err := history.Open(db, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := server.NewServer(server.Config{
		ListenAddr:  addr,
		ArtifactDir: artifacts,
		Logger:      logger,
	}, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}
