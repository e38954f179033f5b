package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directory and file names inside a workspace.
const (
	InboxDir      = "inbox"
	OrganizedDir  = "organized"
	ReviewDir     = "review"
	ExportsDir    = "exports"
	DuplicatesDir = "Duplicates"
	SystemDir     = ".system"
)

// Layout is the resolved set of paths for one workspace root.
type Layout struct {
	Root       string
	Inbox      string
	Organized  string
	Review     string
	Exports    string
	Duplicates string
	System     string
	Cache      string
	Manifest   string
	Runs       string
	Trash      string
	Logs       string
	Config     string
	Catalog    string
	Metrics    string
	LockPath   string
}

// New resolves root to an absolute path and derives the layout. Nothing is
// created on disk.
func New(root string) (Layout, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve workspace root: %w", err)
	}
	system := filepath.Join(abs, SystemDir)
	organized := filepath.Join(abs, OrganizedDir)
	return Layout{
		Root:       abs,
		Inbox:      filepath.Join(abs, InboxDir),
		Organized:  organized,
		Review:     filepath.Join(abs, ReviewDir),
		Exports:    filepath.Join(abs, ExportsDir),
		Duplicates: filepath.Join(organized, DuplicatesDir),
		System:     system,
		Cache:      filepath.Join(system, "cache"),
		Manifest:   filepath.Join(system, "manifest.jsonl"),
		Runs:       filepath.Join(system, "runs"),
		Trash:      filepath.Join(system, "trash"),
		Logs:       filepath.Join(system, "logs"),
		Config:     filepath.Join(system, "config.yml"),
		Catalog:    filepath.Join(system, "catalog.db"),
		Metrics:    filepath.Join(system, "metrics.prom"),
		LockPath:   filepath.Join(system, "lock"),
	}, nil
}

// EnsureStructure creates the full workspace layout. It is idempotent.
func (l Layout) EnsureStructure() error {
	return l.ensure(l.Inbox, l.Organized, l.Review, l.Exports)
}

// EnsureSystemOnly creates the system folders plus the output folders a run
// writes to, leaving the root's existing files in place for an ad-hoc scan.
func (l Layout) EnsureSystemOnly() error {
	return l.ensure(l.Organized, l.Review)
}

func (l Layout) ensure(extra ...string) error {
	dirs := append([]string{l.System, l.Cache, l.Runs, l.Trash, l.Logs}, extra...)
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	file, err := os.OpenFile(l.Manifest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	return file.Close()
}

// IsValid reports whether the root has been initialised.
func (l Layout) IsValid() bool {
	if info, err := os.Stat(l.System); err != nil || !info.IsDir() {
		return false
	}
	info, err := os.Stat(l.Manifest)
	return err == nil && !info.IsDir()
}

// IsAdHoc reports whether the workspace is valid but has no inbox, in which
// case the root itself is scanned.
func (l Layout) IsAdHoc() bool {
	if !l.IsValid() {
		return false
	}
	info, err := os.Stat(l.Inbox)
	return err != nil || !info.IsDir()
}

// ScanDir returns the directory ingest should enumerate.
func (l Layout) ScanDir() string {
	if info, err := os.Stat(l.Inbox); err == nil && info.IsDir() {
		return l.Inbox
	}
	return l.Root
}

// TrashDir returns the staging directory for a run's pre-move backups.
func (l Layout) TrashDir(runID string) string {
	return filepath.Join(l.Trash, runID)
}

// TrashPath maps a source file to its backup location inside trashDir: the
// path relative to the workspace root, or the bare name for outside sources.
func (l Layout) TrashPath(trashDir, source string) string {
	return filepath.Join(trashDir, l.RelPath(source))
}

// RelPath returns source relative to the root, or its base name when source
// lies outside the root.
func (l Layout) RelPath(source string) string {
	rel, err := filepath.Rel(l.Root, source)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return filepath.Base(source)
	}
	return rel
}

// TrashRuns lists run ids with staged trash, oldest first.
func (l Layout) TrashRuns() ([]string, error) {
	entries, err := os.ReadDir(l.Trash)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read trash: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// LatestTrashRun returns the newest run id with staged trash.
func (l Layout) LatestTrashRun() (string, bool, error) {
	ids, err := l.TrashRuns()
	if err != nil || len(ids) == 0 {
		return "", false, err
	}
	return ids[len(ids)-1], true, nil
}

// IsOutputDir reports whether name is one of the folders coworker writes to.
// Ad-hoc scans of the root skip them.
func IsOutputDir(name string) bool {
	switch name {
	case InboxDir, OrganizedDir, ReviewDir, ExportsDir, SystemDir:
		return true
	}
	return false
}
