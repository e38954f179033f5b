// Package document defines the values that flow through the pipeline: the
// scanned File discovered during ingest and the structured Result returned by
// extraction and persisted in the cache.
package document
