package main

import (
	"context"

	"github.com/pushchain/push-updater/internal/checker"
	"github.com/pushchain/push-updater/internal/exitcodes"
	ui "github.com/pushchain/push-updater/internal/ui"
)

// silentErr carries an exit code for an error the user has already seen.
type silentErr struct{ error }

func (e silentErr) Unwrap() error { return e.error }

// getPrinter returns a UI printer bound to the current --output flag.
func getPrinter() ui.Printer { return ui.NewPrinterFromGlobal(flagOutput) }

// What started a run; stored in the history table.
const (
	originCLI      = "cli"
	originSchedule = "schedule"
	originPush     = "push"
	originAPI      = "api"
)

type originKey struct{}

func withOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

func originFrom(ctx context.Context) string {
	if ctx != nil {
		if o, ok := ctx.Value(originKey{}).(string); ok {
			return o
		}
	}
	return originCLI
}

// resultError maps a run to the command's exit status. Failures were
// already shown by the notifier, so the error is silent.
func resultError(res checker.Result) error {
	switch res.Outcome {
	case checker.OutcomeFailed:
		code := exitcodes.CodeForError(res.Err)
		if code == exitcodes.GeneralError && res.FailedStep() == checker.StepReload {
			code = exitcodes.ProcessError
		}
		return silentErr{exitcodes.WrapError(code, "update failed", res.Err)}
	case checker.OutcomeBusy:
		return silentErr{exitcodes.BusyErr("already checking for updates")}
	default:
		return nil
	}
}

// errorActions suggests a next step for an exit code.
func errorActions(code int) []string {
	switch code {
	case exitcodes.InvalidArgs:
		return []string{"Check the flags and config.yaml in the state directory"}
	case exitcodes.PreconditionFailed:
		return []string{"Run 'push-updater status' to see the local update state"}
	case exitcodes.NetworkError:
		return []string{"Check connectivity to the update source and retry"}
	case exitcodes.StorageError:
		return []string{"Free disk space or fix permissions on the binary and state directory"}
	case exitcodes.ValidationError:
		return []string{"Retry later; the release may still be uploading"}
	case exitcodes.ProcessError:
		return []string{"Restart the application manually, or 'push-updater rollback'"}
	default:
		return nil
	}
}
