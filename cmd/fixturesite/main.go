// Command fixturesite serves pages with known contrast defects for local
// audit runs.
// Usage: go run ./cmd/fixturesite [addr]
// Default addr: :9999
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raysh454/lumen/internal/fixturesite"
	"github.com/raysh454/lumen/internal/logging"
)

func main() {
	cfg := fixturesite.DefaultConfig()
	if len(os.Args) > 1 {
		cfg.Addr = os.Args[1]
	}

	fmt.Println("Pages:")
	for _, p := range fixturesite.Pages() {
		fmt.Printf("  %-14s %s (v1..v%d)\n", p.Path, p.Description, p.MaxVersion())
	}
	fmt.Println()
	fmt.Println("Switch versions: curl -X POST -d path=/ -d version=2 localhost" + cfg.Addr + "/fixture/set-version")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	site := fixturesite.New(cfg, logging.NewStdoutLogger("fixturesite"))
	if err := site.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
