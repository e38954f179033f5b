package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"coworker/internal/ingest"
	"coworker/internal/logging"
)

// DefaultDebounce is the quiet period after the last event before a run.
const DefaultDebounce = 2 * time.Second

// Trigger starts one pipeline run.
type Trigger func(ctx context.Context) error

// Options configures a Watcher.
type Options struct {
	Dir      string
	Debounce time.Duration
	// Backfill runs the trigger once at startup when the directory already
	// holds candidates.
	Backfill bool
	Logger   *slog.Logger
}

// Watcher monitors one directory and calls its trigger after new documents
// settle.
type Watcher struct {
	opts    Options
	trigger Trigger
	logger  *slog.Logger
	// ready is closed once the directory is watched and backfill is done.
	ready chan struct{}
}

// New constructs a watcher.
func New(opts Options, trigger Trigger) (*Watcher, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("watch: directory required")
	}
	if trigger == nil {
		return nil, errors.New("watch: trigger required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Watcher{
		opts:    opts,
		trigger: trigger,
		logger:  logging.NewComponentLogger(opts.Logger, "watch"),
		ready:   make(chan struct{}),
	}, nil
}

// Run blocks until ctx is cancelled. Trigger failures are logged and the
// watcher keeps going.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", w.opts.Dir, err)
	}
	w.logger.Info("watching for documents",
		logging.String("dir", w.opts.Dir),
		logging.Duration("debounce", w.opts.Debounce),
	)

	if w.opts.Backfill {
		if err := w.Backfill(ctx); err != nil {
			return err
		}
	}
	close(w.ready)

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(evt) {
				continue
			}
			w.logger.Debug("document event",
				logging.String(logging.FieldFile, filepath.Base(evt.Name)),
				logging.String("op", evt.Op.String()),
			)
			timer.Reset(w.opts.Debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the scan directory still exists"),
				logging.String(logging.FieldImpact, "some new documents may be picked up late"),
			)
		case <-timer.C:
			w.fire(ctx)
		}
	}
}

// Backfill runs the trigger once if the directory already holds candidates.
func (w *Watcher) Backfill(ctx context.Context) error {
	paths, err := ingest.Candidates(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("watch: backfill: %w", err)
	}
	if len(paths) == 0 {
		return nil
	}
	w.logger.Info("processing existing documents", logging.Int("files", len(paths)))
	w.fire(ctx)
	return nil
}

func (w *Watcher) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := w.trigger(ctx); err != nil {
		logging.WarnWithContext(w.logger, "triggered run failed", "watch_run_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run coworker status or check the log for the failing stage"),
			logging.String(logging.FieldImpact, "documents stay in the inbox until the next run"),
		)
	}
}

// relevant filters events to supported documents that still exist. Files
// moved out of the directory by a run arrive as Rename events for the old
// name and are ignored.
func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if evt.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) == 0 {
		return false
	}
	name := filepath.Base(evt.Name)
	if strings.HasPrefix(name, ".") || !ingest.Supported(name) {
		return false
	}
	info, err := os.Stat(evt.Name)
	return err == nil && info.Mode().IsRegular()
}
