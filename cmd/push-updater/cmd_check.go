package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pushchain/push-updater/internal/checker"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check for an update and offer a restart",
		Long: "Query the update source once. A newer release is downloaded, verified and " +
			"installed next to a backup, then you are asked whether to restart now or later.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			return handleCheck(withOrigin(cmd.Context(), originCLI), d)
		},
	}
}

// handleCheck runs one lifecycle in the foreground and prints its result.
func handleCheck(ctx context.Context, d *Deps) error {
	var g checker.Guard
	res := checker.Run(ctx, &g, d.checkerOptions())
	printResult(d, res)
	return resultError(res)
}

func printResult(d *Deps, res checker.Result) {
	p := d.Printer
	if p.IsStructured() {
		p.Structured(res)
		return
	}
	version := "the new version"
	if res.Manifest != nil && res.Manifest.Version != "" {
		version = "v" + res.Manifest.Version
	}
	switch res.Outcome {
	case checker.OutcomeRestartDeclined:
		p.Info(fmt.Sprintf("%s is installed and will run after the next restart", version))
	case checker.OutcomeRestarted:
		p.Success(fmt.Sprintf("Restarted on %s", version))
	case checker.OutcomeBusy:
		p.Warn("An update check is already running")
	}
}
