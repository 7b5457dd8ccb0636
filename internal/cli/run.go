package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tmslabs/factsync/internal/db"
	"github.com/tmslabs/factsync/internal/errors"
	"github.com/tmslabs/factsync/internal/facts"
	"github.com/tmslabs/factsync/internal/merge"
	"github.com/tmslabs/factsync/internal/observability"
	"github.com/tmslabs/factsync/internal/orchestrator"
	"github.com/tmslabs/factsync/internal/schema"
	"github.com/tmslabs/factsync/internal/storage"
)

func (c *CLI) newRunCmd() *cobra.Command {
	var (
		syncType string
		dateFrom string
		dateTo   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a sync synchronously",
		Long: `Run one sync end to end and wait for it to finish.

The date window bounds the fact's primary date column inclusively. An
omitted --from falls back to the configured default window start, an
omitted --to means today.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSync(cmd.Context(), syncType, dateFrom, dateTo)
		},
	}

	cmd.Flags().StringVar(&syncType, "sync", "", "sync type: fact_order, fact_delivery, or both (required)")
	cmd.Flags().StringVar(&dateFrom, "from", "", "window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&dateTo, "to", "", "window end, YYYY-MM-DD")
	cmd.MarkFlagRequired("sync")

	return cmd
}

func (c *CLI) runSync(ctx context.Context, syncType, dateFrom, dateTo string) error {
	t, err := facts.ParseType(syncType)
	if err != nil {
		return err
	}
	window, err := parseWindow(dateFrom, dateTo)
	if err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	source, _, err := db.Connect(ctx, "source", c.cfg.Source)
	if err != nil {
		return err
	}
	defer source.Close()

	target, dialect, err := db.Connect(ctx, "target", c.cfg.Target)
	if err != nil {
		return err
	}
	defer target.Close()

	defaultFrom, err := time.Parse("2006-01-02", c.cfg.Sync.DefaultDateFrom)
	if err != nil {
		return errors.NewConfiguration("sync.defaultDateFrom", "must be YYYY-MM-DD")
	}

	orch := orchestrator.New(
		facts.NewExtractor(source, defaultFrom),
		schema.NewGuard(target, dialect),
		merge.NewEngine(target, dialect),
		storage.NewSyncLog(target, dialect),
		observability.NewJSONLogger(os.Stderr),
	)

	if err := orch.Run(ctx, orchestrator.Request{Type: t, Window: window}); err != nil {
		return err
	}
	c.printf("Sync finished successfully\n")
	return nil
}

func parseWindow(dateFrom, dateTo string) (facts.Window, error) {
	var window facts.Window
	if dateFrom != "" {
		t, err := time.Parse("2006-01-02", dateFrom)
		if err != nil {
			return facts.Window{}, errors.NewInvalidRequest("date_from", "must be YYYY-MM-DD")
		}
		window.From = t
	}
	if dateTo != "" {
		t, err := time.Parse("2006-01-02", dateTo)
		if err != nil {
			return facts.Window{}, errors.NewInvalidRequest("date_to", "must be YYYY-MM-DD")
		}
		window.To = t
	}
	return window, nil
}
