package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pushchain/push-updater/internal/exitcodes"
	"github.com/pushchain/push-updater/internal/history"
	ui "github.com/pushchain/push-updater/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent update checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return exitcodes.InvalidArgsError("--limit must be positive")
			}
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			return handleHistory(cmd.Context(), d, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func handleHistory(ctx context.Context, d *Deps, limit int) error {
	if d.History == nil {
		return exitcodes.WrapError(exitcodes.StorageError, "history store unavailable",
			fmt.Errorf("could not open %s", history.Path(d.Cfg.HomeDir)))
	}
	entries, err := d.History.Recent(ctx, limit)
	if err != nil {
		return exitcodes.WrapError(exitcodes.StorageError, "failed to read history", err)
	}

	p := d.Printer
	if p.IsStructured() {
		if entries == nil {
			entries = []history.Entry{}
		}
		p.Structured(entries)
		return nil
	}
	if len(entries) == 0 {
		p.Info("No update checks recorded yet")
		return nil
	}

	c := p.Colors
	headers := []string{"STARTED", "TRIGGER", "OUTCOME", "VERSION", "DURATION", "DETAIL"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.Error
		if e.Step != "" {
			detail = e.Step + ": " + detail
		}
		version := ""
		if e.Version != "" {
			version = "v" + e.Version
		}
		rows = append(rows, []string{
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Trigger,
			c.StatusIcon(e.Outcome.String()) + " " + e.Outcome.String(),
			version,
			e.FinishedAt.Sub(e.StartedAt).Round(time.Millisecond).String(),
			detail,
		})
	}
	p.Textf("%s", ui.Table(c, headers, rows, []int{19, 8, 24, 10, 9, 40}))
	return nil
}
