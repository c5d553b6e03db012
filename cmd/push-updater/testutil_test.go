package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pushchain/push-updater/internal/checker"
	"github.com/pushchain/push-updater/internal/config"
	"github.com/pushchain/push-updater/internal/history"
	ui "github.com/pushchain/push-updater/internal/ui"
	"github.com/pushchain/push-updater/internal/update"
)

// errMock is a generic error for test assertions.
var errMock = errors.New("mock error")

// mockService implements UpdateService for testing.
type mockService struct {
	mu          sync.Mutex
	avail       checker.Availability
	checkErr    error
	fetchErr    error
	reloadErr   error
	rollbackErr error
	checks      int
	fetches     int
	reloads     int
	rollbacks   int
	// block, when set, holds CheckForUpdate until closed
	block chan struct{}
}

func (m *mockService) CheckForUpdate(ctx context.Context) (checker.Availability, error) {
	m.mu.Lock()
	m.checks++
	block := m.block
	m.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return checker.Availability{}, ctx.Err()
		}
	}
	return m.avail, m.checkErr
}

func (m *mockService) FetchUpdate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	return m.fetchErr
}

func (m *mockService) Reload(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads++
	return m.reloadErr
}

func (m *mockService) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks++
	return m.rollbackErr
}

func (m *mockService) checkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks
}

// mockNotifier picks choice in every dialog that has more than one action.
type mockNotifier struct {
	mu      sync.Mutex
	choice  int // -1 means no answer
	toasts  []string
	dialogs []checker.Dialog
}

func (m *mockNotifier) ShowToast(kind checker.ToastKind, text string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = append(m.toasts, string(kind)+":"+text)
}

func (m *mockNotifier) ShowConfirmDialog(_ context.Context, d checker.Dialog) error {
	m.mu.Lock()
	m.dialogs = append(m.dialogs, d)
	choice := m.choice
	m.mu.Unlock()
	if len(d.Actions) == 1 {
		choice = 0
	}
	if choice < 0 || choice >= len(d.Actions) {
		return checker.ErrNoResponse
	}
	if f := d.Actions[choice].OnSelect; f != nil {
		f()
	}
	return nil
}

// mockHistory records entries and signals each one on recorded.
type mockHistory struct {
	mu       sync.Mutex
	entries  []history.Entry
	err      error
	pruned   int
	recorded chan history.Entry
}

func (m *mockHistory) Record(_ context.Context, e history.Entry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	ch := m.recorded
	m.mu.Unlock()
	if ch != nil {
		ch <- e
	}
	return m.err
}

func (m *mockHistory) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := append([]history.Entry(nil), m.entries...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockHistory) Prune(context.Context, time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned++
	return 0, m.err
}

// mockPrompter returns canned answers.
type mockPrompter struct {
	answer      string
	err         error
	interactive bool
	prompts     []string
}

func (m *mockPrompter) ReadLine(prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.answer, m.err
}

func (m *mockPrompter) IsInteractive() bool { return m.interactive }

func testPrinter(format string, buf *bytes.Buffer) ui.Printer {
	p := ui.NewPrinter(format)
	p.Out = buf
	p.Colors.Enabled = false
	p.Colors.EmojiEnabled = false
	return p
}

// newTestDeps returns Deps over a temp home with a fake installed binary.
func newTestDeps(t *testing.T, format string) (*Deps, *bytes.Buffer, *mockService, *mockNotifier, *mockHistory) {
	t.Helper()
	home := t.TempDir()
	bin := filepath.Join(home, "app")
	if err := os.WriteFile(bin, []byte("current"), 0o755); err != nil {
		t.Fatal(err)
	}
	u, err := update.NewUpdater(bin, "app")
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults()
	cfg.HomeDir = home
	cfg.BinaryPath = bin
	cfg.CurrentVersion = "1.0.0"

	var buf bytes.Buffer
	svc := &mockService{}
	n := &mockNotifier{choice: -1}
	h := &mockHistory{}
	d := &Deps{
		Cfg:      cfg,
		Printer:  testPrinter(format, &buf),
		Prompter: &mockPrompter{},
		Output:   &buf,
		Updater:  u,
		Service:  svc,
		Notifier: n,
		History:  h,
	}
	return d, &buf, svc, n, h
}

// withFlags resets the persistent flags after the test.
func withFlags(t *testing.T) {
	t.Helper()
	home, cfgFile, output := flagHome, flagConfig, flagOutput
	yes, nonInteractive, dev, quiet := flagYes, flagNonInteractive, flagDev, flagQuiet
	t.Cleanup(func() {
		flagHome, flagConfig, flagOutput = home, cfgFile, output
		flagYes, flagNonInteractive, flagDev, flagQuiet = yes, nonInteractive, dev, quiet
	})
}

func newTestLogger() *log.Logger { return log.New(io.Discard, "", 0) }
