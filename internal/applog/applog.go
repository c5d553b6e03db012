// Package applog writes the updater's log file at <home>/push-updater.log.
// Every lifecycle transition lands in the file; with debug on the same lines
// are mirrored to a second writer, usually stderr.
package applog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nxadm/tail"
)

const (
	// FileName is the log file name inside the home directory.
	FileName = "push-updater.log"

	// maxSize is the size at which Open rotates the file to FileName+".1".
	maxSize = 5 << 20
)

// Log owns the open log file.
type Log struct {
	path   string
	logger *log.Logger

	mu   sync.Mutex
	file *os.File
}

// Path returns the log file location for homeDir.
func Path(homeDir string) string {
	return filepath.Join(homeDir, FileName)
}

// Open appends to the log file under homeDir, creating the directory when
// needed. A non-nil mirror receives a copy of every line.
func Open(homeDir string, mirror io.Writer) (*Log, error) {
	path := Path(homeDir)
	//nolint:gosec // G301: state directory needs standard permissions
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := rotate(path); err != nil {
		return nil, err
	}

	//nolint:gosec // G304: path is derived from the configured home
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	var w io.Writer = f
	if mirror != nil {
		w = io.MultiWriter(f, mirror)
	}
	l := &Log{
		path:   path,
		file:   f,
		logger: log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	l.logger.Printf("=== push-updater log opened at %s (pid %d) ===", time.Now().Format(time.RFC3339), os.Getpid())
	return l, nil
}

// Discard returns a Log that drops everything. Useful when the home
// directory cannot be written.
func Discard() *Log {
	return &Log{logger: log.New(io.Discard, "", 0)}
}

// Logger returns the logger to hand to other packages.
func (l *Log) Logger() *log.Logger { return l.logger }

// Path returns the file being written, empty for Discard.
func (l *Log) Path() string { return l.path }

// Close closes the log file. Safe to call more than once.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func rotate(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < maxSize {
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	return nil
}

// FollowOptions controls Follow.
type FollowOptions struct {
	// Follow keeps streaming new lines until ctx is done.
	Follow bool
	// Wait is how long to wait for the file to appear.
	Wait time.Duration
}

// Follow copies the log at path to out, following rotation when
// opts.Follow is set.
func Follow(ctx context.Context, path string, out io.Writer, opts FollowOptions) error {
	deadline := time.Now().Add(opts.Wait)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("log file %s not found", path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    opts.Follow,
		ReOpen:    opts.Follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail log: %w", err)
	}
	defer t.Cleanup()
	defer func() { _ = t.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok || line == nil {
				return nil
			}
			if line.Err != nil {
				return line.Err
			}
			if _, err := fmt.Fprintln(out, line.Text); err != nil {
				return err
			}
		}
	}
}
