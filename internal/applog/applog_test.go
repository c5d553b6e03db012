package applog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpen_WritesAndMirrors(t *testing.T) {
	home := filepath.Join(t.TempDir(), "state")
	var mirror bytes.Buffer

	l, err := Open(home, &mirror)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	l.Logger().Printf("check abc: starting update check")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}

	data, err := os.ReadFile(Path(home))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "starting update check") {
		t.Errorf("log file = %q", data)
	}
	if !strings.Contains(mirror.String(), "starting update check") {
		t.Errorf("mirror = %q", mirror.String())
	}
	if l.Path() != Path(home) {
		t.Errorf("Path() = %q", l.Path())
	}
}

func TestOpen_Appends(t *testing.T) {
	home := t.TempDir()
	for _, msg := range []string{"first run", "second run"} {
		l, err := Open(home, nil)
		if err != nil {
			t.Fatal(err)
		}
		l.Logger().Print(msg)
		_ = l.Close()
	}
	data, _ := os.ReadFile(Path(home))
	if !strings.Contains(string(data), "first run") || !strings.Contains(string(data), "second run") {
		t.Errorf("log should keep earlier runs: %q", data)
	}
}

func TestOpen_Rotates(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(Path(home), bytes.Repeat([]byte("x"), maxSize), 0o600); err != nil {
		t.Fatal(err)
	}
	l, err := Open(home, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if _, err := os.Stat(Path(home) + ".1"); err != nil {
		t.Errorf("rotated file missing: %v", err)
	}
	info, _ := os.Stat(Path(home))
	if info.Size() >= maxSize {
		t.Errorf("log not rotated, size %d", info.Size())
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Logger().Print("dropped")
	if l.Path() != "" {
		t.Errorf("Path() = %q", l.Path())
	}
	if err := l.Close(); err != nil {
		t.Error(err)
	}
}

func TestFollow_NoFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := Follow(context.Background(), path, &out, FollowOptions{}); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if out.String() != "one\ntwo\n" {
		t.Errorf("out = %q", out.String())
	}
}

func TestFollow_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.log")
	err := Follow(context.Background(), path, &bytes.Buffer{}, FollowOptions{Wait: 200 * time.Millisecond})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestFollow_StopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("ready\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Follow(ctx, path, &bytes.Buffer{}, FollowOptions{Follow: true}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Follow() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}
