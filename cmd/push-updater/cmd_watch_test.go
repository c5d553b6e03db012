package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pushchain/push-updater/internal/control"
	"github.com/pushchain/push-updater/internal/history"
	"github.com/pushchain/push-updater/internal/update"
)

func waitEntry(t *testing.T, ch <-chan history.Entry) history.Entry {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a recorded run")
		return history.Entry{}
	}
}

func noServe(context.Context, *control.Server, string) error { return nil }

func TestHandleWatch_RunNow(t *testing.T) {
	d, _, svc, _, h := newTestDeps(t, "text")
	h.recorded = make(chan history.Entry, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- handleWatch(ctx, d, watchOpts{schedule: "@every 1h", runNow: true}, watchDeps{serve: noServe})
	}()

	e := waitEntry(t, h.recorded)
	if e.Trigger != originSchedule {
		t.Errorf("trigger = %q", e.Trigger)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("handleWatch() = %v", err)
	}
	if svc.checkCount() != 1 {
		t.Errorf("checks = %d, want 1", svc.checkCount())
	}
}

func TestHandleWatch_PushTriggersAndOverlapIsDropped(t *testing.T) {
	d, _, svc, _, h := newTestDeps(t, "text")
	h.recorded = make(chan history.Entry, 8)
	svc.block = make(chan struct{})

	events := make(chan update.PushEvent, 2)
	var subscribes atomic.Int32
	wd := watchDeps{
		serve: noServe,
		subscribe: func(ctx context.Context, url string) (<-chan update.PushEvent, error) {
			if subscribes.Add(1) > 1 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return events, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- handleWatch(ctx, d, watchOpts{pushURL: "ws://push.invalid"}, wd)
	}()

	events <- update.PushEvent{Type: "release", Version: "1.3.0"}
	// wait for the first check to be in flight
	deadline := time.Now().Add(5 * time.Second)
	for svc.checkCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	events <- update.PushEvent{Type: "release", Version: "1.3.1"}

	dropped := waitEntry(t, h.recorded)
	if dropped.Outcome.String() != "busy" || dropped.Trigger != originPush {
		t.Errorf("second trigger should be dropped: %+v", dropped)
	}

	close(svc.block)
	finished := waitEntry(t, h.recorded)
	if finished.Outcome.String() != "up_to_date" {
		t.Errorf("first run = %+v", finished)
	}
	if svc.checkCount() != 1 {
		t.Errorf("checks = %d, want 1", svc.checkCount())
	}

	close(events)
	cancel()
	if err := <-done; err != nil {
		t.Errorf("handleWatch() = %v", err)
	}
}

func TestHandleWatch_InvalidSchedule(t *testing.T) {
	d, _, _, _, _ := newTestDeps(t, "text")
	err := handleWatch(context.Background(), d, watchOpts{schedule: "whenever"}, watchDeps{serve: noServe})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestHandleWatch_ControlAPI(t *testing.T) {
	d, _, _, _, h := newTestDeps(t, "text")
	h.recorded = make(chan history.Entry, 4)

	handlers := make(chan http.Handler, 1)
	wd := watchDeps{serve: func(ctx context.Context, srv *control.Server, addr string) error {
		if addr != "127.0.0.1:0" {
			t.Errorf("addr = %q", addr)
		}
		handlers <- srv.Handler()
		<-ctx.Done()
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- handleWatch(ctx, d, watchOpts{controlAddr: "127.0.0.1:0"}, wd)
	}()

	var handler http.Handler
	select {
	case handler = <-handlers:
	case <-time.After(5 * time.Second):
		t.Fatal("control server not started")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/check", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /v1/check = %d", rec.Code)
	}
	if e := waitEntry(t, h.recorded); e.Trigger != originAPI {
		t.Errorf("trigger = %q, want api", e.Trigger)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("handleWatch() = %v", err)
	}
}

func TestWatchPush_Reconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fired := make(chan struct{}, 1)
	subscribe := func(ctx context.Context, url string) (<-chan update.PushEvent, error) {
		if calls.Add(1) == 1 {
			return nil, errMock
		}
		ch := make(chan update.PushEvent, 1)
		ch <- update.PushEvent{Type: "release", Version: "2.0.0"}
		close(ch)
		cancel()
		return ch, nil
	}

	watchPush(ctx, "ws://x", subscribe, newTestLogger(), func() { fired <- struct{}{} })

	if calls.Load() != 2 {
		t.Errorf("subscribe calls = %d, want 2", calls.Load())
	}
	select {
	case <-fired:
	default:
		t.Error("release event should fire a check")
	}
}
