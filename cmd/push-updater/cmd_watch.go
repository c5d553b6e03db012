package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/pushchain/push-updater/internal/checker"
	"github.com/pushchain/push-updater/internal/control"
	"github.com/pushchain/push-updater/internal/update"
)

// historyRetention is how long watch keeps run history.
const historyRetention = 90 * 24 * time.Hour

type watchOpts struct {
	schedule    string
	pushURL     string
	controlAddr string
	runNow      bool
}

// watchDeps holds injectable collaborators for handleWatch.
type watchDeps struct {
	subscribe func(ctx context.Context, url string) (<-chan update.PushEvent, error)
	serve     func(ctx context.Context, srv *control.Server, addr string) error
}

func defaultWatchDeps() watchDeps {
	return watchDeps{
		subscribe: update.SubscribeReleases,
		serve: func(ctx context.Context, srv *control.Server, addr string) error {
			return srv.ListenAndServe(ctx, addr)
		},
	}
}

func newWatchCmd() *cobra.Command {
	var (
		opts      watchOpts
		noControl bool
		noPush    bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check on a schedule and on push events",
		Long: "Run update checks on a cron schedule, whenever the push channel announces a " +
			"release, and on POST /v1/check to the control API. A trigger that arrives " +
			"while a check is running is dropped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			if !cmd.Flags().Changed("schedule") {
				opts.schedule = d.Cfg.Schedule
			}
			if !cmd.Flags().Changed("push-url") {
				opts.pushURL = d.Cfg.PushURL
			}
			if !cmd.Flags().Changed("listen") {
				opts.controlAddr = d.Cfg.ControlAddr
			}
			if noControl {
				opts.controlAddr = ""
			}
			if noPush {
				opts.pushURL = ""
			}
			return handleWatch(cmd.Context(), d, opts, defaultWatchDeps())
		},
	}
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "Cron schedule, e.g. \"@every 30m\" or \"0 */6 * * *\" (default from config)")
	cmd.Flags().StringVar(&opts.pushURL, "push-url", "", "Websocket URL announcing new releases (default from config)")
	cmd.Flags().StringVar(&opts.controlAddr, "listen", "", "Control API address (default from config)")
	cmd.Flags().BoolVar(&noControl, "no-control", false, "Do not serve the control API")
	cmd.Flags().BoolVar(&noPush, "no-push", false, "Do not subscribe to the push channel")
	cmd.Flags().BoolVar(&opts.runNow, "now", true, "Check once at startup")
	return cmd
}

// originTrigger tags every run it starts with an origin.
type originTrigger struct {
	*checker.Checker
	origin string
}

func (t originTrigger) CheckForUpdates(ctx context.Context) bool {
	return t.Checker.CheckForUpdates(withOrigin(ctx, t.origin))
}

// handleWatch blocks until ctx is done, then waits for a running check.
func handleWatch(ctx context.Context, d *Deps, opts watchOpts, wd watchDeps) error {
	lg := d.logger().Logger()
	c := checker.New(d.checkerOptions())
	defer c.Wait()

	fire := func(origin string) {
		if !c.CheckForUpdates(withOrigin(ctx, origin)) {
			lg.Printf("watch: %s trigger dropped, check already running", origin)
		}
	}

	sched := cron.New()
	if opts.schedule != "" {
		if _, err := sched.AddFunc(opts.schedule, func() { fire(originSchedule) }); err != nil {
			return silentErr{fmt.Errorf("invalid schedule %q: %w", opts.schedule, err)}
		}
	}
	if d.History != nil {
		_, _ = sched.AddFunc("@daily", func() { pruneHistory(ctx, d, lg) })
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	if opts.pushURL != "" {
		go watchPush(ctx, opts.pushURL, wd.subscribe, lg, func() { fire(originPush) })
	}

	serveErr := make(chan error, 1)
	if opts.controlAddr != "" {
		srv := control.New(control.Options{
			Trigger:    originTrigger{Checker: c, origin: originAPI},
			History:    historyReader(d),
			RunContext: ctx,
			Logger:     lg,
			Version:    Version,
		})
		go func() { serveErr <- wd.serve(ctx, srv, opts.controlAddr) }()
	}

	d.Printer.Info(fmt.Sprintf("Watching for updates (schedule %q)", opts.schedule))
	lg.Printf("watch: started schedule=%q push=%q control=%q", opts.schedule, opts.pushURL, opts.controlAddr)
	if opts.runNow {
		fire(originSchedule)
	}

	select {
	case <-ctx.Done():
		lg.Printf("watch: stopping")
		return nil
	case err := <-serveErr:
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("control API: %w", err)
	}
}

// historyReader avoids handing control a typed nil.
func historyReader(d *Deps) control.HistoryReader {
	if d.History == nil {
		return nil
	}
	return d.History
}

func pruneHistory(ctx context.Context, d *Deps, lg *log.Logger) {
	n, err := d.History.Prune(ctx, time.Now().Add(-historyRetention))
	if err != nil {
		lg.Printf("history: prune failed: %v", err)
		return
	}
	if n > 0 {
		lg.Printf("history: pruned %d runs", n)
	}
}

// watchPush keeps a push subscription open, reconnecting with backoff.
func watchPush(ctx context.Context, url string, subscribe func(context.Context, string) (<-chan update.PushEvent, error), lg *log.Logger, fire func()) {
	const maxBackoff = time.Minute
	backoff := time.Second
	for {
		events, err := subscribe(ctx, url)
		if err != nil {
			lg.Printf("watch: push channel unavailable: %v", err)
		} else {
			backoff = time.Second
			for ev := range events {
				lg.Printf("watch: push announced release %s", ev.Version)
				fire()
			}
			lg.Printf("watch: push channel closed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
