package undo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"coworker/internal/fileutil"
	"coworker/internal/logging"
	"coworker/internal/manifest"
	"coworker/internal/organizer"
	"coworker/internal/runs"
	"coworker/internal/workspace"
)

var (
	// ErrNothingToUndo is returned when no run has staged trash.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrRunNotFound is returned when the requested run has no trash.
	ErrRunNotFound = errors.New("run not found in trash")
)

// Restore statuses recorded in the manifest.
const (
	StatusRestored        = "restored"
	StatusRestoredRenamed = "restored_renamed"
	StatusFailed          = "error"
)

// Restored describes one file returned to its original location.
type Restored struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Hash    string `json:"hash,omitempty"`
	Renamed bool   `json:"renamed,omitempty"`
}

// Failure is a file that could not be restored.
type Failure struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Report summarises an undo.
type Report struct {
	RunID    string     `json:"run_id"`
	Restored []Restored `json:"restored"`
	// Removed lists organized copies deleted after their source came back.
	Removed []string `json:"removed,omitempty"`
	// Kept lists organized copies left in place because their content changed.
	Kept     []string  `json:"kept,omitempty"`
	Failures []Failure `json:"failures,omitempty"`
}

// Engine restores runs in one workspace.
type Engine struct {
	layout   workspace.Layout
	manifest *manifest.Log
	logger   *slog.Logger
}

// New constructs an undo engine.
func New(layout workspace.Layout, log *manifest.Log, logger *slog.Logger) *Engine {
	return &Engine{layout: layout, manifest: log, logger: logging.NewComponentLogger(logger, "undo")}
}

// Undo restores the files backed up by runID, or by the newest run when
// runID is empty. The run's trash directory is removed once every file is
// back. Nothing is overwritten: a restore target that exists gets a numeric
// suffix instead.
func (e *Engine) Undo(ctx context.Context, runID string) (Report, error) {
	if runID == "" {
		latest, ok, err := e.layout.LatestTrashRun()
		if err != nil {
			return Report{}, err
		}
		if !ok {
			return Report{}, ErrNothingToUndo
		}
		runID = latest
	}
	// Ids become path components below .system/trash.
	if !runs.ValidID(runID) {
		return Report{RunID: runID}, fmt.Errorf("%w: %q is not a run id", ErrRunNotFound, runID)
	}
	trashDir := e.layout.TrashDir(runID)
	if info, err := os.Stat(trashDir); err != nil || !info.IsDir() {
		return Report{RunID: runID}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	logger := logging.WithContext(ctx, e.logger).With(logging.String(logging.FieldRunID, runID))
	placed, err := e.placements(runID, trashDir)
	if err != nil {
		return Report{RunID: runID}, err
	}

	report := Report{RunID: runID}
	walkErr := filepath.WalkDir(trashDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(trashDir, path)
		if err != nil {
			return err
		}
		entry := placed[path]
		restored, err := e.restore(path, filepath.Join(e.layout.Root, rel))
		if err != nil {
			report.Failures = append(report.Failures, Failure{Path: path, Err: err.Error()})
			logging.ErrorWithContext(logger, "restore failed", "undo_restore_failed",
				logging.String("trash_path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restore the file from the trash directory manually"),
			)
			e.appendEntry(logger, manifest.Entry{Event: manifest.EventUndo, Hash: entry.Hash, Source: path, Status: StatusFailed, RunID: runID,
				Details: map[string]any{"error": err.Error()}})
			return nil
		}
		restored.Hash = entry.Hash
		report.Restored = append(report.Restored, restored)

		status := StatusRestored
		if restored.Renamed {
			status = StatusRestoredRenamed
			logging.WarnWithContext(logger, "restore target existed; restored under a new name", "undo_restore_renamed",
				logging.String("original", filepath.Join(e.layout.Root, rel)),
				logging.String("restored", restored.To),
				logging.String(logging.FieldImpact, "original location is occupied by another file"),
				logging.String(logging.FieldErrorHint, "compare the two files and remove the one you do not need"),
			)
		}
		details := map[string]any{}
		if entry.Destination != "" {
			removed, err := removeOrganizedCopy(restored.To, entry.Destination)
			switch {
			case err != nil:
				details["organized_copy_error"] = err.Error()
				report.Kept = append(report.Kept, entry.Destination)
			case removed:
				details["removed"] = entry.Destination
				report.Removed = append(report.Removed, entry.Destination)
			default:
				details["kept"] = entry.Destination
				report.Kept = append(report.Kept, entry.Destination)
			}
		}
		if len(details) == 0 {
			details = nil
		}
		e.appendEntry(logger, manifest.Entry{
			Event:       manifest.EventUndo,
			Hash:        entry.Hash,
			Source:      path,
			Destination: restored.To,
			Status:      status,
			RunID:       runID,
			Details:     details,
		})
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("walk trash %s: %w", runID, walkErr)
	}
	if len(report.Failures) > 0 {
		return report, fmt.Errorf("undo %s: %d file(s) could not be restored; trash kept", runID, len(report.Failures))
	}
	if err := os.RemoveAll(trashDir); err != nil {
		return report, fmt.Errorf("remove trash %s: %w", runID, err)
	}
	logger.Info("run undone",
		logging.Int("restored", len(report.Restored)),
		logging.Int("removed", len(report.Removed)),
		logging.Int("kept", len(report.Kept)),
	)
	return report, nil
}

// placements maps each trash path of runID to the organize entry that moved
// its source.
func (e *Engine) placements(runID, trashDir string) (map[string]manifest.Entry, error) {
	out := make(map[string]manifest.Entry)
	if e.manifest == nil {
		return out, nil
	}
	entries, _, err := e.manifest.Filter(manifest.ForRun(runID, manifest.EventOrganize))
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.Source == "" || entry.Destination == "" {
			continue
		}
		out[e.layout.TrashPath(trashDir, entry.Source)] = entry
	}
	return out, nil
}

func (e *Engine) restore(from, target string) (Restored, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Restored{}, fmt.Errorf("create parent: %w", err)
	}
	err := fileutil.MoveFile(from, target)
	if err == nil {
		return Restored{From: from, To: target}, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return Restored{}, err
	}
	for attempt := 0; attempt < 3; attempt++ {
		alt, err := organizer.FreePath(filepath.Dir(target), filepath.Base(target))
		if err != nil {
			return Restored{}, err
		}
		err = fileutil.MoveFile(from, alt)
		if err == nil {
			return Restored{From: from, To: alt, Renamed: true}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return Restored{}, err
		}
	}
	return Restored{}, fmt.Errorf("could not find a free name next to %s", target)
}

// removeOrganizedCopy deletes organized when it still holds the restored
// content. A missing copy counts as removed.
func removeOrganizedCopy(restored, organized string) (bool, error) {
	same, err := fileutil.SameContent(restored, organized)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	if !same {
		return false, nil
	}
	if err := os.Remove(organized); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) appendEntry(logger *slog.Logger, entry manifest.Entry) {
	if e.manifest == nil {
		return
	}
	if err := e.manifest.Append(entry); err != nil {
		logging.WarnWithContext(logger, "failed to record undo in manifest", "manifest_append_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "undo is not reflected in the audit log"),
		)
	}
}
