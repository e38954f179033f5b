// Package workspace resolves a workspace root to its fixed directory layout
// and guards it with a cross-process file lock.
//
// User-facing folders (inbox, organized, review, exports) sit at the root;
// coworker's own state lives under .system: the extraction cache, the
// manifest, run records, trash staged for undo, logs, the catalog database,
// and per-workspace configuration overrides.
package workspace
