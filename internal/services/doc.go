// Package services defines shared utilities consumed by the pipeline stages
// and the external inference integration.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, file names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (transient vs permanent) without string matching.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
