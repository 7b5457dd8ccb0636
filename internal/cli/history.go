package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tmslabs/factsync/internal/db"
	"github.com/tmslabs/factsync/internal/errors"
	"github.com/tmslabs/factsync/internal/facts"
	"github.com/tmslabs/factsync/internal/storage"
)

func (c *CLI) newHistoryCmd() *cobra.Command {
	var (
		syncType string
		limit    int
		format   string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show sync run history",
		Long:  `Show durable sync run records from the target's sync_log table, newest first, with aggregate counters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runHistory(cmd.Context(), syncType, limit, format)
		},
	}

	cmd.Flags().StringVar(&syncType, "sync-type", "", "filter by sync type")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum records to show")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, or yaml")

	return cmd
}

type historyOutput struct {
	Records []storage.Record `json:"records" yaml:"records"`
	Summary storage.Summary  `json:"summary" yaml:"summary"`
}

func (c *CLI) runHistory(ctx context.Context, syncType string, limit int, format string) error {
	if syncType != "" {
		if _, err := facts.ParseType(syncType); err != nil {
			return err
		}
	}
	if err := c.cfg.Target.Validate("target"); err != nil {
		return err
	}

	target, dialect, err := db.Connect(ctx, "target", c.cfg.Target)
	if err != nil {
		return err
	}
	defer target.Close()

	audit := storage.NewSyncLog(target, dialect)
	records, err := audit.History(ctx, syncType, limit)
	if err != nil {
		return err
	}
	summary, err := audit.Summarize(ctx, syncType)
	if err != nil {
		return err
	}

	out := historyOutput{Records: records, Summary: summary}
	switch format {
	case "table":
		return printHistoryTable(out)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(out)
	default:
		return errors.NewInvalidRequest("format", fmt.Sprintf("unknown format %q", format))
	}
}

func printHistoryTable(out historyOutput) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYNC TYPE\tSTART\tEND\tSTATUS\tROWS\tERROR")
	for _, rec := range out.Records {
		end := "-"
		if rec.EndTime != nil {
			end = rec.EndTime.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.SyncType, rec.StartTime.Format(time.RFC3339), end,
			rec.Status, rec.RecordsProcessed, rec.ErrorMessage)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	last := "-"
	if out.Summary.LastSyncTime != nil {
		last = out.Summary.LastSyncTime.Format(time.RFC3339)
	}
	fmt.Printf("\nTotal: %d  Successful: %d  Failed: %d  Last sync: %s\n",
		out.Summary.Total, out.Summary.Successful, out.Summary.Failed, last)
	return nil
}
