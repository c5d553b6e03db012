// Package checker runs the over-the-air update lifecycle: query the update
// service, fetch a newer payload, and offer a user-confirmed restart.
//
// Exactly one run may be in flight per Guard. Every run ends with the guard
// released, whichever branch it took.
package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options wires the collaborators of a run.
type Options struct {
	Service  UpdateService
	Notifier Notifier
	// DevMode is read once at the start of every run. Nil means production.
	DevMode  func() bool
	Messages Messages
	Logger   *log.Logger
	// OnResult observes every finished run, including dropped ones. It
	// receives the context the run was started with.
	OnResult func(ctx context.Context, r Result)
	Now      func() time.Time
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard, "", 0)
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Run executes one lifecycle under g. If g is already held the call is a
// no-op returning OutcomeBusy. Run never returns an error: failures are
// reported to the user and recorded in the Result.
func Run(ctx context.Context, g *Guard, opts Options) Result {
	res := Result{RunID: uuid.NewString(), StartedAt: opts.now()}
	if !g.TryBegin() {
		opts.logger().Printf("check %s: already checking for updates, skipping", short(res.RunID))
		res.Outcome = OutcomeBusy
		res.FinishedAt = res.StartedAt
		notify(ctx, opts, res)
		return res
	}
	res = execute(ctx, g, opts, res)
	notify(ctx, opts, res)
	return res
}

// execute assumes the caller holds g and releases it before returning.
func execute(ctx context.Context, g *Guard, opts Options, res Result) Result {
	defer g.End()

	lg := opts.logger()
	msgs := opts.Messages.withDefaults()
	id := short(res.RunID)
	lg.Printf("check %s: starting update check", id)

	outcome, ref, err := workflow(ctx, opts, msgs, lg, id)
	res.Outcome = outcome
	res.Manifest = ref
	if err != nil {
		lg.Printf("check %s: update failed: %v", id, err)
		res.Outcome = OutcomeFailed
		res.Err = err
		res.Error = err.Error()
		alertFailure(ctx, opts.Notifier, msgs, err)
	}
	res.FinishedAt = opts.now()
	lg.Printf("check %s: update check finished (%s)", id, res.Outcome)
	return res
}

func workflow(ctx context.Context, opts Options, msgs Messages, lg *log.Logger, id string) (Outcome, *ManifestRef, error) {
	if opts.DevMode != nil && opts.DevMode() {
		lg.Printf("check %s: skipping update check in development mode", id)
		opts.Notifier.ShowToast(ToastInfo, msgs.DevModeSkipped, DevSkipToastDuration)
		return OutcomeSkippedDev, nil, nil
	}

	avail, err := opts.Service.CheckForUpdate(ctx)
	if err != nil {
		return OutcomeFailed, nil, &StepError{Step: StepQuery, Err: err}
	}
	if !avail.IsAvailable {
		lg.Printf("check %s: no update available", id)
		opts.Notifier.ShowToast(ToastSuccess, msgs.UpToDate, UpToDateToastDuration)
		return OutcomeUpToDate, nil, nil
	}

	ref := avail.Manifest
	lg.Printf("check %s: new update available (%s), downloading", id, describe(ref))
	opts.Notifier.ShowToast(ToastInfo, msgs.Downloading, DownloadingToastDuration)
	if err := opts.Service.FetchUpdate(ctx); err != nil {
		return OutcomeFailed, ref, &StepError{Step: StepFetch, Err: err}
	}
	lg.Printf("check %s: new version downloaded", id)

	var (
		restarted bool
		reloadErr error
	)
	dialog := Dialog{
		Title:   msgs.RestartTitle,
		Message: msgs.RestartMessage,
		Actions: []Action{
			{Label: msgs.RestartAction, OnSelect: func() {
				lg.Printf("check %s: restart confirmed, reloading", id)
				restarted = true
				reloadErr = opts.Service.Reload(ctx)
			}},
			{Label: msgs.LaterAction},
		},
	}
	if err := opts.Notifier.ShowConfirmDialog(ctx, dialog); err != nil {
		lg.Printf("check %s: restart prompt closed without answer: %v", id, err)
	}
	if reloadErr != nil {
		return OutcomeFailed, ref, &StepError{Step: StepReload, Err: reloadErr}
	}
	if restarted {
		return OutcomeRestarted, ref, nil
	}
	lg.Printf("check %s: restart declined, update stays pending", id)
	return OutcomeRestartDeclined, ref, nil
}

func alertFailure(ctx context.Context, n Notifier, msgs Messages, err error) {
	cause := err
	var se *StepError
	if errors.As(err, &se) {
		cause = se.Err
	}
	_ = n.ShowConfirmDialog(ctx, Dialog{
		Title:   msgs.FailedTitle,
		Message: fmt.Sprintf(msgs.FailedMessage, cause.Error()),
		Actions: []Action{{Label: msgs.DismissAction}},
	})
}

func notify(ctx context.Context, opts Options, res Result) {
	if opts.OnResult != nil {
		opts.OnResult(ctx, res)
	}
}

func describe(ref *ManifestRef) string {
	if ref == nil {
		return "unknown"
	}
	if ref.Version != "" {
		return "v" + ref.Version
	}
	return ref.ID
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Checker owns a Guard and remembers the last finished run. It is safe for
// concurrent use.
type Checker struct {
	guard Guard
	opts  Options

	mu   sync.Mutex
	last *Result
	wg   sync.WaitGroup
}

// New returns an idle Checker.
func New(opts Options) *Checker {
	c := &Checker{}
	observer := opts.OnResult
	opts.OnResult = func(ctx context.Context, r Result) {
		c.mu.Lock()
		if r.Outcome != OutcomeBusy {
			rc := r
			c.last = &rc
		}
		c.mu.Unlock()
		if observer != nil {
			observer(ctx, r)
		}
	}
	c.opts = opts
	return c
}

// Run executes a lifecycle in the calling goroutine.
func (c *Checker) Run(ctx context.Context) Result { return Run(ctx, &c.guard, c.opts) }

// CheckForUpdates starts a lifecycle in the background and returns at once.
// It reports false, and does nothing else, if a check is already running.
func (c *Checker) CheckForUpdates(ctx context.Context) bool {
	res := Result{RunID: uuid.NewString(), StartedAt: c.opts.now()}
	if !c.guard.TryBegin() {
		c.opts.logger().Printf("check %s: already checking for updates, skipping", short(res.RunID))
		res.Outcome = OutcomeBusy
		res.FinishedAt = res.StartedAt
		notify(ctx, c.opts, res)
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		notify(ctx, c.opts, execute(ctx, &c.guard, c.opts, res))
	}()
	return true
}

// Checking reports whether a run is in flight.
func (c *Checker) Checking() bool { return c.guard.Checking() }

// Last returns the most recent run that was not dropped.
func (c *Checker) Last() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Result{}, false
	}
	return *c.last, true
}

// Wait blocks until every background run has finished.
func (c *Checker) Wait() { c.wg.Wait() }
