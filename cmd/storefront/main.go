package main

import (
	"os"

	"github.com/Additional-Code/storefront/internal/cli"
)

// main dispatches to the start, worker, migrate and seed subcommands.
func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
