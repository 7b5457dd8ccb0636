// Package main is the entrypoint for the factsync CLI.
// The CLI runs fact syncs synchronously and inspects the durable
// run history kept in the target's sync_log table.
package main

import (
	"os"

	"github.com/tmslabs/factsync/internal/cli"
)

// Build information, set via ldflags.
var (
	version = "0.1.0"
	commit  = ""
	date    = ""
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.New().Execute())
}
