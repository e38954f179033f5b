package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"coworker/internal/docinfo"
	"coworker/internal/document"
	"coworker/internal/logging"
	"coworker/internal/workspace"
)

// Extensions lists the supported document extensions.
var Extensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// Supported reports whether name has a supported extension.
func Supported(name string) bool {
	_, ok := Extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// MimeType returns the mime type for path from its extension, sniffing the
// first bytes when the extension is unknown.
func MimeType(path string) string {
	if mime, ok := Extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	file, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer file.Close()
	head := make([]byte, 512)
	n, _ := file.Read(head)
	return http.DetectContentType(head[:n])
}

// Options configures Scan.
type Options struct {
	// Root is the workspace root used to compute relative paths.
	Root   string
	Probe  bool
	Logger *slog.Logger
}

// Failure records a candidate that could not be hashed.
type Failure struct {
	Path string
	Err  error
}

// Report is the result of a scan.
type Report struct {
	Files    []document.File
	Failures []Failure
}

// Candidates lists supported files directly inside dir, sorted by name.
// Dot-files, directories and coworker's own output folders are skipped.
func Candidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scan directory: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || workspace.IsOutputDir(name) {
			continue
		}
		if !entry.Type().IsRegular() || !Supported(name) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// Scan enumerates dir (non-recursively) and hashes every candidate. Per-file
// hash failures are collected in the report instead of aborting the scan.
func Scan(ctx context.Context, dir string, opts Options) (Report, error) {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "ingest"))
	paths, err := Candidates(dir)
	if err != nil {
		return Report{}, err
	}

	report := Report{Files: make([]document.File, 0, len(paths))}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		info, err := os.Stat(path)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Path: path, Err: err})
			continue
		}
		hash, err := HashFile(path)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Path: path, Err: err})
			continue
		}
		file := document.File{
			Path:    path,
			RelPath: relPath(opts.Root, path),
			Name:    filepath.Base(path),
			Size:    info.Size(),
			Hash:    hash,
			Mime:    MimeType(path),
			ModTime: info.ModTime(),
		}
		if opts.Probe {
			probe, err := docinfo.Probe(path)
			if err != nil {
				logging.WarnWithContext(logger, "document probe failed", "ingest_probe_failed",
					logging.String(logging.FieldFile, file.Name),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "the file may be corrupt; extraction will still be attempted"),
					logging.String(logging.FieldImpact, "page count or dimensions missing from the manifest"),
				)
			} else {
				file.Info = probe
			}
		}
		report.Files = append(report.Files, file)
	}
	logger.Debug("scan complete",
		logging.String("dir", dir),
		logging.Int("files", len(report.Files)),
		logging.Int("failures", len(report.Failures)),
	)
	return report, nil
}

func relPath(root, path string) string {
	if root == "" {
		return filepath.Base(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return rel
}
