// Package cli provides the command-line interface for factsync.
// The CLI runs syncs synchronously and inspects durable run history; the
// asynchronous boundary lives in the syncd daemon.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tmslabs/factsync/internal/config"
	"github.com/tmslabs/factsync/internal/errors"
)

// Exit codes, mapped from the error taxonomy.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitConfig     = 2
	ExitDatabase   = 3
	ExitInternal   = 4
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config

	// Global flags
	configPath string
	quiet      bool
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "factsync: %v\n", err)
		return int(errors.CodeOf(err))
	}
	return ExitSuccess
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "factsync",
		Short: "Factsync - cross-database fact synchronization",
		Long: `Factsync extracts aggregated fact datasets from the operational
database and idempotently merges them into the reporting database.

Commands run against the endpoints named in the config file; every run
writes a durable record to the sync_log audit table on the target.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.factsync/config.yaml)")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")

	cmd.AddCommand(c.newRunCmd())
	cmd.AddCommand(c.newHistoryCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *CLI) printf(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	fmt.Printf(format, args...)
}
