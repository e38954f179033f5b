package manifest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event names.
const (
	EventIngest   = "ingest"
	EventExtract  = "extract"
	EventOrganize = "organize"
	EventUndo     = "undo"
	EventFix      = "fix"
)

// Entry is one manifest line.
type Entry struct {
	Timestamp   time.Time      `json:"timestamp"`
	Event       string         `json:"event"`
	Hash        string         `json:"hash"`
	Source      string         `json:"source"`
	Status      string         `json:"status"`
	Destination string         `json:"destination,omitempty"`
	RunID       string         `json:"run_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Log appends entries to a manifest file.
type Log struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// Open returns a log writing to path. The file is created on first append.
func Open(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Path returns the manifest file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes entry as one line and syncs it. A zero timestamp is filled
// with the current time.
func (l *Log) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}
	entry.Timestamp = entry.Timestamp.UTC()
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode manifest entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync manifest: %w", err)
	}
	return f.Close()
}

// Touch creates an empty manifest when none exists.
func (l *Log) Touch() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	return f.Close()
}

// Stats summarises a read.
type Stats struct {
	Entries   int
	Malformed int
}

// Read returns every well-formed entry in file order.
func (l *Log) Read() ([]Entry, Stats, error) {
	return l.Filter(nil)
}

// Filter returns the entries accepted by keep, in file order. A nil keep
// accepts everything. A missing manifest yields no entries.
func (l *Log) Filter(keep func(Entry) bool) ([]Entry, Stats, error) {
	var stats Stats
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, stats, nil
		}
		return nil, stats, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil || entry.Event == "" {
			stats.Malformed++
			continue
		}
		stats.Entries++
		if keep == nil || keep(entry) {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, stats, fmt.Errorf("read manifest: %w", err)
	}
	return entries, stats, nil
}

// ForRun returns a filter matching event entries of runID. An empty event
// matches every event.
func ForRun(runID, event string) func(Entry) bool {
	return func(e Entry) bool {
		return e.RunID == runID && (event == "" || e.Event == event)
	}
}

// SourceNames maps each hash to the base name of the first source recorded
// for it by an ingest entry.
func SourceNames(entries []Entry) map[string]string {
	names := make(map[string]string)
	for _, e := range entries {
		if e.Event != EventIngest || e.Hash == "" {
			continue
		}
		if _, ok := names[e.Hash]; !ok {
			names[e.Hash] = filepath.Base(e.Source)
		}
	}
	return names
}
