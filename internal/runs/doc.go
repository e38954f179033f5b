// Package runs records per-run telemetry: stage timings, file counters and
// token usage. Each run is saved as .system/runs/<run_id>.json and the
// latest run is also exported as a Prometheus textfile for node_exporter.
package runs
