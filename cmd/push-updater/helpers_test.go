package main

import (
	"context"
	"errors"
	"testing"

	"github.com/pushchain/push-updater/internal/checker"
	"github.com/pushchain/push-updater/internal/exitcodes"
	"github.com/pushchain/push-updater/internal/update"
)

func TestResultError(t *testing.T) {
	tests := []struct {
		name     string
		res      checker.Result
		wantCode int
	}{
		{"up to date", checker.Result{Outcome: checker.OutcomeUpToDate}, exitcodes.Success},
		{"skipped", checker.Result{Outcome: checker.OutcomeSkippedDev}, exitcodes.Success},
		{"declined", checker.Result{Outcome: checker.OutcomeRestartDeclined}, exitcodes.Success},
		{"busy", checker.Result{Outcome: checker.OutcomeBusy}, exitcodes.UpdateBusy},
		{
			"storage failure",
			checker.Result{Outcome: checker.OutcomeFailed, Err: &checker.StepError{Step: checker.StepFetch, Err: &update.Error{Kind: update.KindStorage}}},
			exitcodes.StorageError,
		},
		{
			"unknown failure",
			checker.Result{Outcome: checker.OutcomeFailed, Err: &checker.StepError{Step: checker.StepQuery, Err: errMock}},
			exitcodes.GeneralError,
		},
		{
			"reload failure",
			checker.Result{Outcome: checker.OutcomeFailed, Err: &checker.StepError{Step: checker.StepReload, Err: errMock}},
			exitcodes.ProcessError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resultError(tt.res)
			if got := exitcodes.CodeForError(err); got != tt.wantCode {
				t.Errorf("code = %d, want %d", got, tt.wantCode)
			}
			if err != nil && !errors.Is(err, tt.res.Err) && tt.res.Err != nil {
				t.Error("error chain should keep the cause")
			}
		})
	}
}

func TestOrigin(t *testing.T) {
	if got := originFrom(context.Background()); got != originCLI {
		t.Errorf("default origin = %q", got)
	}
	if got := originFrom(withOrigin(context.Background(), originPush)); got != originPush {
		t.Errorf("origin = %q", got)
	}
}

func TestSilentErrUnwraps(t *testing.T) {
	err := silentErr{exitcodes.PreconditionError("nope")}
	var se silentErr
	if !errors.As(error(err), &se) {
		t.Fatal("errors.As should find silentErr")
	}
	if exitcodes.CodeForError(err) != exitcodes.PreconditionFailed {
		t.Error("code should come from the wrapped error")
	}
}

func TestErrorActions(t *testing.T) {
	for _, code := range []int{
		exitcodes.InvalidArgs,
		exitcodes.PreconditionFailed,
		exitcodes.NetworkError,
		exitcodes.StorageError,
		exitcodes.ValidationError,
		exitcodes.ProcessError,
	} {
		if len(errorActions(code)) == 0 {
			t.Errorf("code %d has no suggested action", code)
		}
	}
	if errorActions(exitcodes.GeneralError) != nil {
		t.Error("general errors should not suggest an action")
	}
}
