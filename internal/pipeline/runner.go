package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coworker/internal/catalog"
	"coworker/internal/config"
	"coworker/internal/document"
	"coworker/internal/export"
	"coworker/internal/extractcache"
	"coworker/internal/inference"
	"coworker/internal/ingest"
	"coworker/internal/logging"
	"coworker/internal/manifest"
	"coworker/internal/organizer"
	"coworker/internal/runs"
	"coworker/internal/services"
	"coworker/internal/workspace"
)

var (
	// ErrInvalidWorkspace is returned when the root is not initialised and
	// auto-init is off.
	ErrInvalidWorkspace = errors.New("not a coworker workspace (run 'coworker init' or enable organize.auto_init)")
	// ErrNoFiles is returned when a non-dry run finds nothing to process.
	ErrNoFiles = errors.New("no supported documents found")
)

// Stage names recorded on the run record.
const (
	StageIngest   = "ingest"
	StageExtract  = "extract"
	StageOrganize = "organize"
	StageExport   = "export"
)

// Extractor resolves the result for one file.
type Extractor interface {
	ExtractFile(ctx context.Context, file document.File, force bool) (inference.Outcome, error)
}

// Deps are the collaborators of a Runner. Catalog and Extractor are
// optional: without an extractor only Fix is available. When Catalog is nil
// and IndexCatalog is set, each run opens the workspace catalog itself once
// the workspace exists.
type Deps struct {
	Layout    workspace.Layout
	Config    *config.Config
	Cache     *extractcache.Cache
	Manifest  *manifest.Log
	Extractor Extractor
	Catalog   *catalog.Store
	// IndexCatalog opens Layout.Catalog per run when Catalog is nil.
	IndexCatalog bool
	Logger       *slog.Logger
	Now          func() time.Time
}

// Options controls one run.
type Options struct {
	Force  bool
	DryRun bool
	// Mode is config.LayoutFolders, LayoutSpreadsheet or LayoutBoth. Empty
	// uses the configured layout.
	Mode     string
	AutoInit bool
	Dev      bool
}

// FileOutcome is the per-file result of a run.
type FileOutcome struct {
	Name        string `json:"name"`
	Hash        string `json:"hash"`
	Status      string `json:"status"`
	Destination string `json:"destination,omitempty"`
	DocType     string `json:"doc_type,omitempty"`
	Review      bool   `json:"review_needed"`
	Cached      bool   `json:"cached"`
	Error       string `json:"error,omitempty"`
}

// Summary is what a run reports back to the caller.
type Summary struct {
	Run    runs.Run      `json:"run"`
	AdHoc  bool          `json:"ad_hoc"`
	Files  []FileOutcome `json:"files"`
	Export *export.Paths `json:"export,omitempty"`
}

// Runner executes pipeline runs for one workspace.
type Runner struct {
	deps      Deps
	organizer *organizer.Organizer
	logger    *slog.Logger
	now       func() time.Time
}

// New validates deps and constructs a Runner.
func New(deps Deps) (*Runner, error) {
	if deps.Config == nil {
		return nil, errors.New("pipeline: config required")
	}
	if deps.Cache == nil {
		return nil, errors.New("pipeline: cache required")
	}
	if deps.Manifest == nil {
		return nil, errors.New("pipeline: manifest required")
	}
	if strings.TrimSpace(deps.Layout.Root) == "" {
		return nil, errors.New("pipeline: workspace layout required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		deps:      deps,
		organizer: organizer.New(deps.Layout, deps.Logger),
		logger:    logging.NewComponentLogger(deps.Logger, "pipeline"),
		now:       now,
	}, nil
}

// Run executes one pass over the workspace scan directory.
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	if r.deps.Extractor == nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "", "pipeline run", "extractor not configured", nil)
	}
	mode, err := r.resolveMode(opts.Mode)
	if err != nil {
		return Summary{}, err
	}
	adHoc, err := r.prepareWorkspace(opts)
	if err != nil {
		return Summary{}, err
	}

	lock, err := r.deps.Layout.Lock()
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			r.logger.Warn("failed to release workspace lock", logging.Error(unlockErr))
		}
	}()

	layout := r.deps.Layout
	runID := runs.NewID(r.now(), layout.Runs, layout.Trash)
	ctx = services.WithRunID(ctx, runID)
	recorder := runs.NewRecorder(runID, layout.Runs, r.now)
	recorder.SetOptions(mode, opts.DryRun)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("scan_dir", layout.ScanDir()),
		logging.String("mode", mode),
		logging.Bool("dry_run", opts.DryRun),
		logging.Bool("force", opts.Force),
		logging.Bool("ad_hoc", adHoc),
	)

	state := &runState{
		runID:    runID,
		opts:     opts,
		recorder: recorder,
		catalog:  r.deps.Catalog,
		results:  make(map[string]extraction),
	}
	if state.catalog == nil && r.deps.IndexCatalog && !opts.DryRun {
		store, err := catalog.Open(layout.Catalog)
		if err != nil {
			logging.WarnWithContext(logger, "failed to open catalog", "catalog_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete .system/catalog.db to rebuild it on the next run"),
				logging.String(logging.FieldImpact, "this run is not indexed for coworker list"),
			)
		} else {
			state.catalog = store
			defer store.Close()
		}
	}

	files, err := r.ingestStage(ctx, state)
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 && !opts.DryRun {
		return Summary{}, ErrNoFiles
	}
	if err := r.extractStage(ctx, state, files); err != nil {
		return Summary{}, err
	}

	// Extraction errors count once per file, not once per hash.
	outcomes := make([]FileOutcome, len(files))
	for i, file := range files {
		outcomes[i] = state.baseOutcome(file)
		if outcomes[i].Status == StatusError {
			state.recorder.RecordError()
		}
	}
	if mode == config.LayoutFolders || mode == config.LayoutBoth {
		if err := r.organizeStage(ctx, state, files, outcomes); err != nil {
			return Summary{}, err
		}
	}

	summary := Summary{AdHoc: adHoc, Files: outcomes}
	var exportErr error
	if (mode == config.LayoutSpreadsheet || mode == config.LayoutBoth) && !opts.DryRun {
		paths, err := r.exportStage(ctx, state)
		if err != nil {
			exportErr = err
		} else {
			summary.Export = &paths
		}
	}

	summary.Run = recorder.Finish()
	if err := runs.Save(layout.Runs, summary.Run); err != nil {
		logging.WarnWithContext(logger, "failed to save run record", "run_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on .system/runs"),
			logging.String(logging.FieldImpact, "this run is missing from coworker status"),
		)
	}
	if err := runs.WriteMetrics(layout.Metrics, summary.Run); err != nil {
		logging.WarnWithContext(logger, "failed to write metrics", "run_metrics_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on .system"),
			logging.String(logging.FieldImpact, "node_exporter shows the previous run"),
		)
	}
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("files", summary.Run.TotalFiles),
		logging.Int("processed", summary.Run.Processed),
		logging.Int("cached", summary.Run.Cached),
		logging.Int("organized", summary.Run.Organized),
		logging.Int("duplicates", summary.Run.Duplicates),
		logging.Int("review_needed", summary.Run.ReviewNeeded),
		logging.Int("errors", summary.Run.Errors),
		logging.Duration("duration", summary.Run.Duration()),
	)
	if exportErr != nil {
		return summary, fmt.Errorf("export: %w", exportErr)
	}
	return summary, nil
}

func (r *Runner) resolveMode(mode string) (string, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = r.deps.Config.Organize.Layout
	}
	switch mode {
	case config.LayoutFolders, config.LayoutSpreadsheet, config.LayoutBoth:
		return mode, nil
	default:
		return "", services.Wrap(services.ErrValidation, "", "pipeline run", fmt.Sprintf("unknown mode %q", mode), nil)
	}
}

// prepareWorkspace initialises an ad-hoc workspace when allowed. It reports
// whether the workspace scans its root.
func (r *Runner) prepareWorkspace(opts Options) (bool, error) {
	layout := r.deps.Layout
	if layout.IsValid() {
		return layout.IsAdHoc(), nil
	}
	if !opts.AutoInit {
		return false, ErrInvalidWorkspace
	}
	candidates, err := ingest.Candidates(layout.Root)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 && !opts.DryRun {
		return false, ErrNoFiles
	}
	if err := layout.EnsureSystemOnly(); err != nil {
		return false, fmt.Errorf("initialise workspace: %w", err)
	}
	r.logger.Info("initialised ad-hoc workspace",
		logging.String("root", layout.Root),
		logging.Int("candidates", len(candidates)),
	)
	return true, nil
}

func (r *Runner) stageContext(ctx context.Context, state *runState, stage string) (context.Context, *slog.Logger) {
	ctx = services.WithStage(ctx, stage)
	state.recorder.StartStage(stage)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	return ctx, logger
}

func (r *Runner) endStage(logger *slog.Logger, state *runState, stage string) {
	elapsed := state.recorder.EndStage(stage)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", elapsed),
	)
}

// appendEntry writes a manifest entry. A manifest failure is logged; the
// file operation it describes has already happened.
func (r *Runner) appendEntry(logger *slog.Logger, entry manifest.Entry) {
	if err := r.deps.Manifest.Append(entry); err != nil {
		logging.ErrorWithContext(logger, "failed to append manifest entry", "manifest_append_failed",
			logging.String("event", entry.Event),
			logging.String(logging.FieldHash, entry.Hash),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on .system/manifest.jsonl"),
			logging.String(logging.FieldImpact, "undo and export may miss this file"),
		)
	}
}
