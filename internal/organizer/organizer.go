package organizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"coworker/internal/config"
	"coworker/internal/document"
	"coworker/internal/fileutil"
	"coworker/internal/logging"
	"coworker/internal/services"
	"coworker/internal/workspace"
)

const stageName = "organize"

// Status is the manifest status of a placement.
type Status string

const (
	StatusOrganized Status = "organized"
	StatusSkipped   Status = "skipped"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
)

// Request describes one placement.
type Request struct {
	Source string
	Result document.Result
	Hash   string
	// Mode is config.ModeMove or config.ModeCopy.
	Mode   string
	DryRun bool
	// TrashDir receives a backup of Source before a move. Empty disables the
	// backup.
	TrashDir string
}

// Outcome reports where a file went.
type Outcome struct {
	Status      Status
	Destination string
	// Backup is the trash copy staged before a move, if any.
	Backup string
}

// Organizer places files inside one workspace.
type Organizer struct {
	layout workspace.Layout
	logger *slog.Logger
}

// New constructs an organizer for layout.
func New(layout workspace.Layout, logger *slog.Logger) *Organizer {
	return &Organizer{layout: layout, logger: logging.NewComponentLogger(logger, "organizer")}
}

// Organize places req.Source under the organized or review tree.
func (o *Organizer) Organize(ctx context.Context, req Request) (Outcome, error) {
	dir := DestinationDir(o.layout, req.Result)
	name := FileName(req.Result, req.Hash, filepath.Ext(req.Source))
	return o.place(ctx, req, dir, name, StatusOrganized)
}

// OrganizeDuplicate places a file whose content was already organized in
// this run under organized/Duplicates with its original name.
func (o *Organizer) OrganizeDuplicate(ctx context.Context, req Request) (Outcome, error) {
	return o.place(ctx, req, o.layout.Duplicates, filepath.Base(req.Source), StatusDuplicate)
}

func (o *Organizer) place(ctx context.Context, req Request, dir, name string, status Status) (Outcome, error) {
	logger := logging.WithContext(ctx, o.logger)
	if err := ctx.Err(); err != nil {
		return Outcome{Status: StatusError}, err
	}
	info, err := os.Stat(req.Source)
	if err != nil {
		return Outcome{Status: StatusError}, services.Wrap(services.ErrNotFound, stageName, "stat source", req.Source, err)
	}

	if req.DryRun {
		target, err := FreePath(dir, name)
		if err != nil {
			return Outcome{Status: StatusError}, services.Wrap(services.ErrTransient, stageName, "allocate filename", name, err)
		}
		logger.Info("dry run placement",
			logging.String(logging.FieldFile, filepath.Base(req.Source)),
			logging.String("destination", target),
		)
		return Outcome{Status: StatusSkipped, Destination: target}, nil
	}

	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	var backup string
	transfer := func(target string) error { return fileutil.CopyFileExclusive(req.Source, target) }
	if mode != config.ModeCopy {
		if req.TrashDir != "" {
			backup = o.layout.TrashPath(req.TrashDir, req.Source)
			if err := stageBackup(req.Source, backup); err != nil {
				return Outcome{Status: StatusError}, services.Wrap(services.ErrTransient, stageName, "stage backup", backup, err)
			}
		}
		transfer = func(target string) error { return fileutil.MoveFile(req.Source, target) }
	}

	target, err := placeExclusive(dir, name, transfer)
	if err != nil {
		if backup != "" {
			if removeErr := os.Remove(backup); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				logging.WarnWithContext(logger, "failed to discard trash backup", "organize_backup_cleanup_failed",
					logging.String("backup", backup),
					logging.Error(removeErr),
					logging.String(logging.FieldErrorHint, "delete the stale backup before running undo"),
				)
			}
		}
		return Outcome{Status: StatusError}, services.Wrap(services.ErrTransient, stageName, "place file", fmt.Sprintf("%s -> %s", req.Source, dir), err)
	}
	if err := verifyPlacement(target, info.Size()); err != nil {
		return Outcome{Status: StatusError, Destination: target, Backup: backup}, services.Wrap(services.ErrValidation, stageName, "verify placement", target, err)
	}

	logger.Info("document placed",
		logging.String(logging.FieldFile, filepath.Base(req.Source)),
		logging.String("destination", target),
		logging.String("status", string(status)),
		logging.String("mode", mode),
	)
	return Outcome{Status: status, Destination: target, Backup: backup}, nil
}
