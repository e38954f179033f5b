// Package catalog keeps a SQLite index of placed documents so they can be
// listed and filtered without walking the organized tree.
//
// The catalog lives at .system/catalog.db. It is derived data: the manifest
// and extract cache remain the source of truth, and deleting the database
// only loses the index. Rows are keyed by destination path and upserted by
// the organize stage, rewritten by fix and dropped when a run is undone.
package catalog
