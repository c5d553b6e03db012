package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/pushchain/push-updater/internal/applog"
	"github.com/pushchain/push-updater/internal/checker"
	"github.com/pushchain/push-updater/internal/config"
	"github.com/pushchain/push-updater/internal/exitcodes"
	"github.com/pushchain/push-updater/internal/history"
	ui "github.com/pushchain/push-updater/internal/ui"
	"github.com/pushchain/push-updater/internal/update"
)

// UpdateService is the backend the commands drive.
type UpdateService interface {
	checker.UpdateService
	Rollback() error
}

// HistoryStore records lifecycle runs.
type HistoryStore interface {
	Record(ctx context.Context, e history.Entry) error
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Deps holds all injectable dependencies for command handlers.
type Deps struct {
	Cfg      config.Config
	Printer  ui.Printer
	Prompter ui.Prompter
	Output   io.Writer
	Log      *applog.Log
	Updater  *update.Updater
	Service  UpdateService
	Notifier checker.Notifier
	// History is nil when the store could not be opened.
	History HistoryStore

	closers []func() error
}

// Close releases the history store and the log file.
func (d *Deps) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}

func (d *Deps) logger() *applog.Log {
	if d.Log == nil {
		d.Log = applog.Discard()
	}
	return d.Log
}

// checkerOptions wires a lifecycle run to the command's collaborators.
func (d *Deps) checkerOptions() checker.Options {
	return checker.Options{
		Service:  d.Service,
		Notifier: d.Notifier,
		DevMode:  func() bool { return d.Cfg.DevMode },
		Messages: checker.ForLocale(d.Cfg.Locale),
		Logger:   d.logger().Logger(),
		OnResult: d.recordResult,
	}
}

// recordResult stores a finished run under the origin carried by ctx.
func (d *Deps) recordResult(ctx context.Context, r checker.Result) {
	if d.History == nil {
		return
	}
	// the run context may already be cancelled
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.History.Record(recCtx, history.FromResult(r, originFrom(ctx))); err != nil {
		d.logger().Logger().Printf("history: failed to record run %s: %v", r.RunID, err)
	}
}

// ttyPrompter is the production implementation of ui.Prompter.
// It uses /dev/tty when stdin is not a terminal (e.g., piped input).
type ttyPrompter struct{}

func (p *ttyPrompter) ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)

	var reader *bufio.Reader
	if term.IsTerminal(int(os.Stdin.Fd())) {
		reader = bufio.NewReader(os.Stdin)
	} else {
		tty, err := os.OpenFile("/dev/tty", os.O_RDONLY, 0)
		if err != nil {
			return "", fmt.Errorf("no interactive terminal available: %w", err)
		}
		defer tty.Close()
		reader = bufio.NewReader(tty)
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *ttyPrompter) IsInteractive() bool {
	if flagNonInteractive {
		return false
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	tty, err := os.OpenFile("/dev/tty", os.O_RDONLY, 0)
	if err == nil {
		tty.Close()
		return true
	}
	return false
}

// newDeps creates production dependencies from the current flags and config.
func newDeps(ctx context.Context) (*Deps, error) {
	cfg, err := loadCfg()
	if err != nil {
		return nil, err
	}

	d := &Deps{
		Cfg:      cfg,
		Printer:  getPrinter(),
		Prompter: &ttyPrompter{},
		Output:   os.Stdout,
	}

	var mirror io.Writer
	if flagDebug {
		mirror = os.Stderr
	}
	lg, err := applog.Open(cfg.HomeDir, mirror)
	if err != nil {
		d.Printer.Warn(fmt.Sprintf("Logging disabled: %v", err))
		lg = applog.Discard()
	}
	d.Log = lg
	d.closers = append(d.closers, lg.Close)

	u, err := update.NewUpdater(cfg.BinaryPath, cfg.BinaryName)
	if err != nil {
		_ = d.Close()
		return nil, exitcodes.WrapError(exitcodes.PreconditionFailed, "cannot locate binary to update", err)
	}
	u.Client = &http.Client{Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: cfg.HTTPTimeout,
	}}
	d.Updater = u

	d.Service = update.NewService(update.ServiceOptions{
		Source:         newSource(cfg, &http.Client{Timeout: cfg.HTTPTimeout}),
		Updater:        u,
		Reloader:       newReloader(cfg, lg),
		HomeDir:        cfg.HomeDir,
		CurrentVersion: cfg.CurrentVersion,
		SkipVerify:     cfg.SkipVerify,
		Progress:       newDownloadProgress(d.Printer, d.Output),
		Logger:         lg.Logger(),
	})

	d.Notifier = ui.NewTerminalNotifier(ui.NotifierOptions{
		Printer:        d.Printer,
		Yes:            flagYes,
		NonInteractive: flagNonInteractive,
		Dialog:         dialogRunner(),
		Prompter:       d.Prompter,
	})

	store, err := history.Open(ctx, history.Path(cfg.HomeDir))
	if err != nil {
		lg.Logger().Printf("history: store unavailable: %v", err)
	} else {
		d.History = store
		d.closers = append(d.closers, store.Close)
	}
	return d, nil
}

func newSource(cfg config.Config, client update.HTTPDoer) update.Source {
	if cfg.Source == config.SourceManifest {
		return &update.ManifestSource{
			URL:            cfg.ManifestURL,
			Channel:        cfg.Channel,
			CurrentVersion: cfg.CurrentVersion,
			Client:         client,
		}
	}
	return &update.GitHubSource{
		Owner:   cfg.GitHubOwner,
		Repo:    cfg.GitHubRepo,
		APIBase: cfg.GitHubAPI,
		Channel: cfg.Channel,
		Client:  client,
	}
}

// newReloader picks how a confirmed restart happens: the configured
// command, or exec of ourselves when we are the binary being updated.
// A foreign binary without a reload command cannot be restarted.
func newReloader(cfg config.Config, lg *applog.Log) update.Reloader {
	if strings.TrimSpace(cfg.ReloadCommand) != "" {
		return &update.CommandReloader{Command: cfg.ReloadCommand}
	}
	if cfg.BinaryPath == "" {
		return &update.ExecReloader{}
	}
	lg.Logger().Printf("update: no reload_command for %s, restarts will fail", cfg.BinaryPath)
	return nil
}

// dialogRunner returns the full-screen dialog when both ends are a TTY.
func dialogRunner() ui.DialogRunner {
	if flagNonInteractive || !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil
	}
	return func(ctx context.Context, d checker.Dialog) (int, error) {
		return ui.RunDialog(ctx, d, os.Stdin, os.Stdout)
	}
}

// newDownloadProgress draws one progress bar per download in text mode.
func newDownloadProgress(p ui.Printer, out io.Writer) update.ProgressFunc {
	if p.IsStructured() || flagQuiet {
		return nil
	}
	var (
		mu  sync.Mutex
		bar *ui.ProgressBar
	)
	return func(downloaded, total int64) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = ui.NewProgressBar(out, total)
			bar.SetLabel("Downloading update")
		}
		bar.Track(downloaded, total)
		if total > 0 && downloaded >= total {
			bar.Finish()
			bar = nil
		}
	}
}
