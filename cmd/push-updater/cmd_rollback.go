package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pushchain/push-updater/internal/exitcodes"
)

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Restore the previous binary",
		Long:  "Put back the binary that the last installed update replaced and forget the pending update.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			return handleRollback(d)
		},
	}
}

func handleRollback(d *Deps) error {
	p := d.Printer
	if !d.Updater.HasBackup() {
		if p.IsStructured() {
			p.Structured(map[string]any{"ok": false, "error": "no backup to restore"})
			return silentErr{exitcodes.PreconditionError("no backup to restore")}
		}
		return exitcodes.PreconditionErrorf("no backup found at %s", d.Updater.BackupPath())
	}

	if !flagYes && !p.IsStructured() && d.Prompter.IsInteractive() {
		answer, err := d.Prompter.ReadLine(fmt.Sprintf("Restore %s from backup? [y/N]: ", d.Updater.BinaryPath))
		if err != nil || (answer != "y" && answer != "Y" && answer != "yes") {
			p.Warn("Rollback cancelled")
			return nil
		}
	}

	if err := d.Service.Rollback(); err != nil {
		d.logger().Logger().Printf("rollback: %v", err)
		return err
	}
	d.logger().Logger().Printf("rollback: restored %s", d.Updater.BinaryPath)
	if p.IsStructured() {
		p.Structured(map[string]any{"ok": true, "binary": d.Updater.BinaryPath})
		return nil
	}
	p.Success(fmt.Sprintf("Restored previous binary at %s", d.Updater.BinaryPath))
	p.Info("Restart the application to run it")
	return nil
}
