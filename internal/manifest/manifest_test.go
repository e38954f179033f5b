package manifest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	log := Open(path)
	log.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600)) }

	entries := []Entry{
		{Event: EventIngest, Hash: "h1", Source: "/ws/inbox/a.jpg", Status: "ingested", RunID: "r1", Details: map[string]any{"size": 10}},
		{Event: EventOrganize, Hash: "h1", Source: "/ws/inbox/a.jpg", Status: "organized", Destination: "/ws/organized/x.jpg", RunID: "r1"},
		{Event: EventOrganize, Hash: "h2", Source: "/ws/inbox/b.jpg", Status: "organized", RunID: "r2"},
	}
	for _, e := range entries {
		if err := log.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, stats, err := log.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 3 || stats.Entries != 3 || stats.Malformed != 0 {
		t.Fatalf("unexpected read %d entries, stats %+v", len(got), stats)
	}
	if got[0].Timestamp.Location() != time.UTC || got[0].Timestamp.Hour() != 11 {
		t.Fatalf("expected UTC timestamp, got %v", got[0].Timestamp)
	}
	if got[1].Destination != "/ws/organized/x.jpg" {
		t.Fatalf("unexpected destination %q", got[1].Destination)
	}

	run, _, err := log.Filter(ForRun("r1", EventOrganize))
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(run) != 1 || run[0].Hash != "h1" {
		t.Fatalf("unexpected filtered entries %+v", run)
	}
}

func TestReadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	content := `{"timestamp":"2024-05-01T12:00:00Z","event":"ingest","hash":"h1","source":"a","status":"ingested"}
not json
{"hash":"no-event"}

{"timestamp":"2024-05-01T12:00:01Z","event":"extract","hash":"h1","source":"a","status":"cached"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, stats, err := Open(path).Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 || stats.Malformed != 2 {
		t.Fatalf("expected 2 entries and 2 malformed, got %d / %+v", len(got), stats)
	}
}

func TestReadMissingManifest(t *testing.T) {
	got, _, err := Open(filepath.Join(t.TempDir(), "missing.jsonl")).Read()
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty read, got %v err=%v", got, err)
	}
}

func TestConcurrentAppendsStayLineAligned(t *testing.T) {
	log := Open(filepath.Join(t.TempDir(), "manifest.jsonl"))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := log.Append(Entry{Event: EventExtract, Hash: "h", Source: "s", Status: "cached"}); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()
	got, stats, err := log.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 50 || stats.Malformed != 0 {
		t.Fatalf("expected 50 clean entries, got %d / %+v", len(got), stats)
	}
}

func TestSourceNames(t *testing.T) {
	names := SourceNames([]Entry{
		{Event: EventIngest, Hash: "h1", Source: "/ws/inbox/first.jpg"},
		{Event: EventIngest, Hash: "h1", Source: "/ws/inbox/second.jpg"},
		{Event: EventOrganize, Hash: "h2", Source: "/ws/inbox/other.jpg"},
	})
	if names["h1"] != "first.jpg" {
		t.Fatalf("unexpected name %q", names["h1"])
	}
	if _, ok := names["h2"]; ok {
		t.Fatal("non-ingest entries should be ignored")
	}
}

func TestTouch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	log := Open(path)
	if err := log.Touch(); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := log.Append(Entry{Event: EventFix, Hash: "h", Status: "fixed"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Touch(); err != nil {
		t.Fatalf("Touch existing: %v", err)
	}
	got, _, _ := log.Read()
	if len(got) != 1 {
		t.Fatalf("Touch truncated manifest, got %d entries", len(got))
	}
}
