package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pushchain/push-updater/internal/applog"
	"github.com/pushchain/push-updater/internal/exitcodes"
)

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		wait   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show or follow the updater log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			return handleLogs(cmd.Context(), applog.Path(cfg.HomeDir), cmd.OutOrStdout(),
				applog.FollowOptions{Follow: follow, Wait: wait})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new lines")
	cmd.Flags().DurationVar(&wait, "wait", 0, "How long to wait for the log file to appear")
	return cmd
}

func handleLogs(ctx context.Context, path string, out io.Writer, opts applog.FollowOptions) error {
	err := applog.Follow(ctx, path, out, opts)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case flagOutput == "json":
		getPrinter().JSON(map[string]any{"ok": false, "error": err.Error(), "path": path})
		return silentErr{exitcodes.PreconditionError(err.Error())}
	default:
		return exitcodes.WrapError(exitcodes.PreconditionFailed, fmt.Sprintf("cannot read log %s", path), err)
	}
}
