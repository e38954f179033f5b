package watch

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"coworker/internal/testsupport"
)

func startWatcher(t *testing.T, opts Options, trigger Trigger) (*Watcher, <-chan error) {
	t.Helper()
	w, err := New(opts, trigger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("watcher did not stop")
		}
	})
	select {
	case <-w.ready:
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("watcher never became ready")
	}
	return w, done
}

func TestNewRequiresDirAndTrigger(t *testing.T) {
	if _, err := New(Options{}, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for empty dir")
	}
	if _, err := New(Options{Dir: t.TempDir()}, nil); err == nil {
		t.Fatal("expected error for nil trigger")
	}
	w, err := New(Options{Dir: t.TempDir()}, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w.opts.Debounce != DefaultDebounce {
		t.Fatalf("debounce = %v, want %v", w.opts.Debounce, DefaultDebounce)
	}
}

func TestWatcherTriggersOnceForBurst(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan struct{}, 10)
	var calls atomic.Int32
	trigger := func(context.Context) error {
		calls.Add(1)
		fired <- struct{}{}
		return nil
	}
	startWatcher(t, Options{Dir: dir, Debounce: 200 * time.Millisecond}, trigger)

	testsupport.WriteContent(t, filepath.Join(dir, "a.jpg"), "a")
	testsupport.WriteContent(t, filepath.Join(dir, "b.pdf"), "b")
	testsupport.WriteContent(t, filepath.Join(dir, "c.PNG"), "c")

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not fire")
	}
	time.Sleep(500 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("trigger calls = %d, want 1", got)
	}
}

func TestWatcherIgnoresUnsupportedAndHidden(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	startWatcher(t, Options{Dir: dir, Debounce: 50 * time.Millisecond}, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	testsupport.WriteContent(t, filepath.Join(dir, "notes.txt"), "x")
	testsupport.WriteContent(t, filepath.Join(dir, ".hidden.jpg"), "x")

	time.Sleep(400 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("trigger calls = %d, want 0", got)
	}
}

func TestWatcherBackfillsExistingDocuments(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteContent(t, filepath.Join(dir, "old.jpg"), "old")
	var calls atomic.Int32
	startWatcher(t, Options{Dir: dir, Debounce: time.Hour, Backfill: true}, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	if got := calls.Load(); got != 1 {
		t.Fatalf("backfill calls = %d, want 1", got)
	}
}

func TestBackfillSkipsEmptyDirectory(t *testing.T) {
	var calls int
	w, err := New(Options{Dir: t.TempDir()}, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Backfill(context.Background()); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}

func TestRunFailsForMissingDirectory(t *testing.T) {
	w, err := New(Options{Dir: filepath.Join(t.TempDir(), "missing")}, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
