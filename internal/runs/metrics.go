package runs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "coworker"

// WriteMetrics exports run as a Prometheus textfile at path.
func WriteMetrics(path string, run Run) error {
	registry := prometheus.NewRegistry()

	files := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "last_run",
		Name:      "files",
		Help:      "Files handled by the most recent run, by outcome.",
	}, []string{"outcome"})
	tokens := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "last_run",
		Name:      "tokens",
		Help:      "Tokens used by the most recent run.",
	}, []string{"direction"})
	stages := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "last_run",
		Name:      "stage_seconds",
		Help:      "Stage wall time of the most recent run.",
	}, []string{"stage"})
	aiSeconds := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "last_run",
		Name:      "ai_seconds",
		Help:      "Time spent waiting on the inference service.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "last_run",
		Name:      "duration_seconds",
		Help:      "Wall time of the most recent run.",
	})
	finished := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "last_run",
		Name:      "timestamp_seconds",
		Help:      "Unix time the most recent run finished.",
	})
	registry.MustRegister(files, tokens, stages, aiSeconds, duration, finished)

	for outcome, value := range map[string]int{
		"total":         run.TotalFiles,
		"processed":     run.Processed,
		"cached":        run.Cached,
		"live":          run.LiveCalls,
		"errors":        run.Errors,
		"review_needed": run.ReviewNeeded,
		"duplicates":    run.Duplicates,
		"organized":     run.Organized,
	} {
		files.WithLabelValues(outcome).Set(float64(value))
	}
	tokens.WithLabelValues("in").Set(float64(run.TokensIn))
	tokens.WithLabelValues("out").Set(float64(run.TokensOut))
	for stage, seconds := range run.StageSeconds {
		stages.WithLabelValues(stage).Set(seconds)
	}
	aiSeconds.Set(run.AISeconds)
	duration.Set(run.Duration().Seconds())
	if !run.FinishedAt.IsZero() {
		finished.Set(float64(run.FinishedAt.Unix()))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
