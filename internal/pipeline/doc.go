// Package pipeline runs the ingest, extract, organize and export stages over
// one workspace.
//
// A run holds the workspace lock for its whole duration. Extraction is a
// barrier: every unique hash is resolved (cache or live call) before any file
// is placed, so files sharing content get the same result. Per-file failures
// are counted on the run record and never abort the run; only workspace,
// lock and cancellation errors do.
//
// Fix edits one cached result in place and keeps the catalog and manifest in
// step with the change.
package pipeline
