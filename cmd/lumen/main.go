package main

import (
	"os"

	"github.com/raysh454/lumen/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
