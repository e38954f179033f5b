package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"coworker/internal/catalog"
	"coworker/internal/config"
	"coworker/internal/document"
	"coworker/internal/export"
	"coworker/internal/ingest"
	"coworker/internal/logging"
	"coworker/internal/manifest"
	"coworker/internal/organizer"
	"coworker/internal/runs"
	"coworker/internal/services"
)

// Manifest statuses written by the pipeline.
const (
	StatusIngested  = "ingested"
	StatusCached    = "cached"
	StatusExtracted = "extracted"
	StatusError     = "error"
)

type extraction struct {
	result document.Result
	cached bool
	err    error
}

type runState struct {
	runID    string
	opts     Options
	recorder *runs.Recorder
	catalog  *catalog.Store

	mu      sync.Mutex
	results map[string]extraction
}

func (s *runState) set(hash string, value extraction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[hash] = value
}

func (s *runState) get(hash string) (extraction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.results[hash]
	return value, ok
}

func (s *runState) baseOutcome(file document.File) FileOutcome {
	out := FileOutcome{Name: file.Name, Hash: file.Hash}
	value, ok := s.get(file.Hash)
	switch {
	case !ok:
		out.Status = StatusError
	case value.err != nil:
		out.Status = StatusError
		out.Error = value.err.Error()
	default:
		out.Cached = value.cached
		out.DocType = value.result.DocType
		out.Review = value.result.IsReviewNeeded
		out.Status = StatusExtracted
		if value.cached {
			out.Status = StatusCached
		}
	}
	return out
}

func (r *Runner) ingestStage(ctx context.Context, state *runState) ([]document.File, error) {
	ctx, logger := r.stageContext(ctx, state, StageIngest)
	defer r.endStage(logger, state, StageIngest)

	layout := r.deps.Layout
	report, err := ingest.Scan(ctx, layout.ScanDir(), ingest.Options{
		Root:   layout.Root,
		Probe:  true,
		Logger: r.deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	state.recorder.AddFiles(len(report.Files) + len(report.Failures))

	for _, failure := range report.Failures {
		state.recorder.RecordError()
		logging.WarnWithContext(logger, "failed to hash document", "ingest_hash_failed",
			logging.String(logging.FieldFile, filepath.Base(failure.Path)),
			logging.Error(failure.Err),
			logging.String(logging.FieldErrorHint, "check that the file is readable"),
			logging.String(logging.FieldImpact, "the file is skipped this run"),
		)
		r.appendEntry(logger, manifest.Entry{
			Event:   manifest.EventIngest,
			Source:  failure.Path,
			Status:  StatusError,
			RunID:   state.runID,
			Details: map[string]any{"error": failure.Err.Error()},
		})
	}
	for _, file := range report.Files {
		details := map[string]any{
			"size": file.Size,
			"mime": file.Mime,
		}
		if file.Info.Pages > 0 {
			details["pages"] = file.Info.Pages
		}
		if file.Info.Width > 0 {
			details["width"] = file.Info.Width
			details["height"] = file.Info.Height
		}
		r.appendEntry(logger, manifest.Entry{
			Event:   manifest.EventIngest,
			Hash:    file.Hash,
			Source:  file.Path,
			Status:  StatusIngested,
			RunID:   state.runID,
			Details: details,
		})
	}
	logger.Info("ingest complete",
		logging.Int("files", len(report.Files)),
		logging.Int("failures", len(report.Failures)),
	)
	return report.Files, nil
}

// uniqueByHash keeps the first file of each hash, preserving order.
func uniqueByHash(files []document.File) []document.File {
	seen := make(map[string]struct{}, len(files))
	unique := make([]document.File, 0, len(files))
	for _, file := range files {
		if _, ok := seen[file.Hash]; ok {
			continue
		}
		seen[file.Hash] = struct{}{}
		unique = append(unique, file)
	}
	return unique
}

func (r *Runner) extractStage(ctx context.Context, state *runState, files []document.File) error {
	ctx, logger := r.stageContext(ctx, state, StageExtract)
	defer r.endStage(logger, state, StageExtract)

	unique := uniqueByHash(files)
	var group errgroup.Group
	for _, file := range unique {
		group.Go(func() error {
			fileCtx := services.WithFile(ctx, file.Name)
			outcome, err := r.deps.Extractor.ExtractFile(fileCtx, file, state.opts.Force)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return ctxErr
				}
				state.set(file.Hash, extraction{err: err})
				logging.WarnWithContext(logging.WithContext(fileCtx, r.logger), "extraction failed", "extract_failed",
					logging.String(logging.FieldHash, file.Hash),
					logging.Error(err),
					logging.String("error_kind", services.ErrorKind(err)),
					logging.String(logging.FieldErrorHint, "rerun later; transient failures are not cached"),
					logging.String(logging.FieldImpact, "files with this content stay in place this run"),
				)
				r.appendEntry(logger, manifest.Entry{
					Event:  manifest.EventExtract,
					Hash:   file.Hash,
					Source: file.Path,
					Status: StatusError,
					RunID:  state.runID,
					Details: map[string]any{
						"error":      err.Error(),
						"error_kind": services.ErrorKind(err),
					},
				})
				return nil
			}

			state.set(file.Hash, extraction{result: outcome.Result, cached: outcome.Cached})
			state.recorder.RecordExtraction(outcome.Result, outcome.Cached)
			status := StatusExtracted
			if outcome.Cached {
				status = StatusCached
			}
			details := map[string]any{
				"doc_type":      outcome.Result.DocType,
				"confidence":    outcome.Result.Confidence,
				"review_needed": outcome.Result.IsReviewNeeded,
			}
			if outcome.Result.ReviewReason != "" {
				details["review_reason"] = outcome.Result.ReviewReason
			}
			if !outcome.Cached {
				details["attempts"] = outcome.Attempts
				details["tokens"] = outcome.Result.TokenUsage.TotalTokens
			}
			r.appendEntry(logger, manifest.Entry{
				Event:   manifest.EventExtract,
				Hash:    file.Hash,
				Source:  file.Path,
				Status:  status,
				RunID:   state.runID,
				Details: details,
			})
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("extract complete", logging.Int("unique", len(unique)))
	return nil
}

func (r *Runner) organizeStage(ctx context.Context, state *runState, files []document.File, outcomes []FileOutcome) error {
	ctx, logger := r.stageContext(ctx, state, StageOrganize)
	defer r.endStage(logger, state, StageOrganize)

	cfg := r.deps.Config
	routeDuplicates := cfg.Organize.Duplicates != config.DuplicatesOrganize
	trashDir := ""
	if cfg.Organize.Mode == config.ModeMove {
		trashDir = r.deps.Layout.TrashDir(state.runID)
	}

	placed := make(map[string]bool, len(files))
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, ok := state.get(file.Hash)
		if !ok || value.err != nil {
			continue
		}
		req := organizer.Request{
			Source:   file.Path,
			Result:   value.result,
			Hash:     file.Hash,
			Mode:     cfg.Organize.Mode,
			DryRun:   state.opts.DryRun,
			TrashDir: trashDir,
		}
		fileCtx := services.WithFile(ctx, file.Name)
		var (
			outcome organizer.Outcome
			err     error
		)
		if placed[file.Hash] && routeDuplicates {
			outcome, err = r.organizer.OrganizeDuplicate(fileCtx, req)
		} else {
			outcome, err = r.organizer.Organize(fileCtx, req)
		}

		entry := manifest.Entry{
			Event:       manifest.EventOrganize,
			Hash:        file.Hash,
			Source:      file.Path,
			Status:      string(outcome.Status),
			Destination: outcome.Destination,
			RunID:       state.runID,
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			state.recorder.RecordError()
			outcomes[i].Status = StatusError
			outcomes[i].Error = err.Error()
			entry.Status = string(organizer.StatusError)
			entry.Details = map[string]any{"error": err.Error(), "error_kind": services.ErrorKind(err)}
			logging.WarnWithContext(logging.WithContext(fileCtx, r.logger), "placement failed", "organize_failed",
				logging.String(logging.FieldHash, file.Hash),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check free space and permissions on the output folders"),
				logging.String(logging.FieldImpact, "the file stays where it was"),
			)
			r.appendEntry(logger, entry)
			continue
		}

		placed[file.Hash] = true
		outcomes[i].Status = string(outcome.Status)
		outcomes[i].Destination = outcome.Destination
		if outcome.Backup != "" {
			entry.Details = map[string]any{"backup": outcome.Backup}
		}
		r.appendEntry(logger, entry)

		switch outcome.Status {
		case organizer.StatusOrganized:
			state.recorder.RecordOrganized()
		case organizer.StatusDuplicate:
			state.recorder.RecordDuplicate()
		}
		if !state.opts.DryRun {
			r.index(fileCtx, state.catalog, catalog.NewRecord(file.Hash, file.Path, outcome.Destination, string(outcome.Status), state.runID, value.result))
		}
	}
	return nil
}

func (r *Runner) index(ctx context.Context, store *catalog.Store, rec catalog.Record) {
	if store == nil {
		return
	}
	if err := store.Upsert(ctx, rec); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to index document", "catalog_upsert_failed",
			logging.String("destination", rec.Destination),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete .system/catalog.db to rebuild it on the next run"),
			logging.String(logging.FieldImpact, "coworker list will not show this document"),
		)
	}
}

func (r *Runner) exportStage(ctx context.Context, state *runState) (export.Paths, error) {
	_, logger := r.stageContext(ctx, state, StageExport)
	defer r.endStage(logger, state, StageExport)

	paths, err := export.Run(r.deps.Layout, r.deps.Cache, r.deps.Manifest, state.opts.Dev)
	if err != nil {
		logging.ErrorWithContext(logger, "export failed", "export_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "close master.xlsx if it is open and run coworker export"),
			logging.String(logging.FieldImpact, "the spreadsheet is out of date"),
		)
		return export.Paths{}, err
	}
	logger.Info("export complete",
		logging.String("workbook", paths.Workbook),
		logging.Int("rows", paths.Rows),
	)
	return paths, nil
}
