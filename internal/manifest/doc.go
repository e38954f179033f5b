// Package manifest maintains the append-only audit log of a workspace.
//
// Every state transition (ingest, extract, organize, undo, fix) is one JSON
// line in .system/manifest.jsonl. Entries are written and synced one at a
// time so a crash never loses a completed step. Readers tolerate and count
// malformed lines.
package manifest
