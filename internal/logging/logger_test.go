package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coworker/internal/config"
	"coworker/internal/logging"
	"coworker/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	logDir := t.TempDir()

	logger, err := logging.NewFromConfig(&cfg, logDir)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file", logging.String("key", "value"))

	data, err := os.ReadFile(filepath.Join(logDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("log file line is not JSON: %v (%q)", err, data)
	}
	if record["msg"] != "hello file" || record["key"] != "value" || record["level"] != "info" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key in %v", record)
	}
}

func TestConsoleHeaderIncludesComponentAndRun(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithRunID(context.Background(), "20240101_120000")
	ctx = services.WithStage(ctx, "extract")
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline"))
	log.Info("stage started", logging.Int("files", 3))

	out := buf.String()
	for _, want := range []string{"INFO", "[pipeline]", "Run 20240101_120000 (extract)", "stage started", "- files: 3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in console output, got %q", want, out)
		}
	}
	if strings.Contains(out, "- run_id") {
		t.Fatalf("run id should be in header only, got %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestAutoFormatUsesJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "auto", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("piped")
	if !json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "cache entry unreadable", "extract_cache_corrupt",
		logging.String(logging.FieldImpact, "file will be re-extracted"),
	)
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldEventType] != "extract_cache_corrupt" {
		t.Fatalf("missing event type: %v", record)
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("missing error hint: %v", record)
	}
	if record[logging.FieldImpact] != "file will be re-extracted" {
		t.Fatalf("impact overridden: %v", record)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("ignored")
	logging.ErrorWithContext(nil, "ignored", "none")
}

func TestConsoleHeaderNamesFileAndGroupsFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithFile(context.Background(), "scan.jpg")
	logging.WithContext(ctx, logger).WithGroup("usage").Debug("extraction complete",
		logging.Int("tokens", 150),
		logging.String("model", ""),
	)

	out := buf.String()
	for _, want := range []string{"DEBUG", " scan.jpg - extraction complete", "- usage.tokens: 150", `- usage.model: ""`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in console output, got %q", want, out)
		}
	}
}
