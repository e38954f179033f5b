package runs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coworker/internal/document"
)

func steppingClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func TestNewIDAddsSuffixWhenTaken(t *testing.T) {
	root := t.TempDir()
	runsDir := filepath.Join(root, "runs")
	trashDir := filepath.Join(root, "trash")
	now := time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)

	if got := NewID(now, runsDir, trashDir); got != "20240501_123045" {
		t.Fatalf("NewID = %q", got)
	}
	if err := os.MkdirAll(filepath.Join(trashDir, "20240501_123045"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := NewID(now, runsDir, trashDir); got != "20240501_123045_2" {
		t.Fatalf("NewID with trash collision = %q", got)
	}
	if err := Save(runsDir, Run{ID: "20240501_123045_2"}); err != nil {
		t.Fatal(err)
	}
	if got := NewID(now, runsDir, trashDir); got != "20240501_123045_3" {
		t.Fatalf("NewID with run collision = %q", got)
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"20240501_123045", true},
		{"20240501_123045_2", true},
		{"20240501_123045_12", true},
		{"20240501_123045_1", false},
		{"20240501_123045_02", false},
		{"20240501_123045_", false},
		{"20240501_123045x", false},
		{"20241301_123045", false},
		{"..", false},
		{".", false},
		{"a/b", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Fatalf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestRecorderCountsAndSaves(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder("20240501_120000", dir, steppingClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), time.Second))
	rec.SetOptions("move", false)
	rec.AddFiles(3)
	rec.StartStage("extract")
	rec.RecordExtraction(document.Result{ProcessingTime: 1.5, TokenUsage: document.TokenUsage{PromptTokens: 100, CandidatesTokens: 10}}, false)
	rec.RecordExtraction(document.Result{IsReviewNeeded: true, TokenUsage: document.TokenUsage{PromptTokens: 999}}, true)
	rec.RecordError()
	if elapsed := rec.EndStage("extract"); elapsed != time.Second {
		t.Fatalf("unexpected stage duration %v", elapsed)
	}
	rec.RecordOrganized()
	rec.RecordDuplicate()
	run := rec.Finish()

	if run.TotalFiles != 3 || run.Processed != 2 || run.Cached != 1 || run.LiveCalls != 1 || run.Errors != 1 {
		t.Fatalf("unexpected counters %+v", run.Counters)
	}
	if run.TokensIn != 100 || run.TokensOut != 10 || run.AISeconds != 1.5 || run.ReviewNeeded != 1 {
		t.Fatalf("cached usage must not be counted: %+v", run.Counters)
	}
	if run.StageSeconds["extract"] != 1 {
		t.Fatalf("unexpected stage seconds %v", run.StageSeconds)
	}
	if run.Duration() <= 0 {
		t.Fatal("expected positive duration")
	}
	if err := rec.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	listed, err := List(dir, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "20240501_120000" || listed[0].Organized != 1 || listed[0].Mode != "move" {
		t.Fatalf("unexpected listed runs %+v", listed)
	}
}

func TestListSkipsCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"20240502_000000", "20240501_000000"} {
		if err := Save(dir, Run{ID: id, Counters: Counters{TotalFiles: 2}}); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	listed, err := List(dir, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "20240501_000000" {
		t.Fatalf("unexpected runs %+v", listed)
	}
	if total := Aggregate(listed); total.TotalFiles != 4 {
		t.Fatalf("unexpected aggregate %+v", total)
	}
}

func TestListMissingDir(t *testing.T) {
	listed, err := List(filepath.Join(t.TempDir(), "missing"), nil)
	if err != nil || listed != nil {
		t.Fatalf("expected empty list, got %v err=%v", listed, err)
	}
}

func TestWriteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.prom")
	run := Run{
		ID:           "20240501_120000",
		StartedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC),
		StageSeconds: map[string]float64{"extract": 12},
		Counters:     Counters{TotalFiles: 4, Cached: 2, TokensIn: 150},
	}
	if err := WriteMetrics(path, run); err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		`coworker_last_run_files{outcome="cached"} 2`,
		`coworker_last_run_files{outcome="total"} 4`,
		`coworker_last_run_tokens{direction="in"} 150`,
		`coworker_last_run_stage_seconds{stage="extract"} 12`,
		`coworker_last_run_duration_seconds 30`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %q:\n%s", want, text)
		}
	}
}
