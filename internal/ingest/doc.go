// Package ingest enumerates candidate documents in a scan directory and
// computes the content hash that keys the extraction cache.
package ingest
