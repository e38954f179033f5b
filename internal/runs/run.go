package runs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"coworker/internal/document"
	"coworker/internal/logging"
)

// IDLayout is the time layout of run identifiers. Ids sort chronologically.
const IDLayout = "20060102_150405"

// Counters are the per-run file and usage totals.
type Counters struct {
	TotalFiles   int     `json:"total_files"`
	Processed    int     `json:"processed"`
	Cached       int     `json:"cached"`
	LiveCalls    int     `json:"live_calls"`
	Errors       int     `json:"errors"`
	ReviewNeeded int     `json:"review_needed"`
	Duplicates   int     `json:"duplicates"`
	Organized    int     `json:"organized"`
	TokensIn     int     `json:"tokens_in"`
	TokensOut    int     `json:"tokens_out"`
	AISeconds    float64 `json:"ai_seconds"`
}

// Add accumulates other into c.
func (c *Counters) Add(other Counters) {
	c.TotalFiles += other.TotalFiles
	c.Processed += other.Processed
	c.Cached += other.Cached
	c.LiveCalls += other.LiveCalls
	c.Errors += other.Errors
	c.ReviewNeeded += other.ReviewNeeded
	c.Duplicates += other.Duplicates
	c.Organized += other.Organized
	c.TokensIn += other.TokensIn
	c.TokensOut += other.TokensOut
	c.AISeconds += other.AISeconds
}

// Run is the persisted record of one pipeline run.
type Run struct {
	ID           string             `json:"run_id"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at,omitzero"`
	DryRun       bool               `json:"dry_run,omitempty"`
	Mode         string             `json:"mode,omitempty"`
	StageSeconds map[string]float64 `json:"stage_seconds"`
	Counters
}

// Duration is the wall time of a finished run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewID returns the run id for now. When that id is already used by a run
// record or a trash directory, a numeric suffix is appended.
func NewID(now time.Time, runsDir, trashDir string) string {
	base := now.Format(IDLayout)
	for n := 1; ; n++ {
		id := base
		if n > 1 {
			id = base + "_" + strconv.Itoa(n)
		}
		if !exists(filepath.Join(runsDir, id+".json")) && !exists(filepath.Join(trashDir, id)) {
			return id
		}
	}
}

// ValidID reports whether id has the shape NewID produces:
// 20060102_150405 with an optional _N suffix.
func ValidID(id string) bool {
	if len(id) < len(IDLayout) {
		return false
	}
	if _, err := time.Parse(IDLayout, id[:len(IDLayout)]); err != nil {
		return false
	}
	suffix := id[len(IDLayout):]
	if suffix == "" {
		return true
	}
	n, err := strconv.Atoi(strings.TrimPrefix(suffix, "_"))
	return strings.HasPrefix(suffix, "_") && err == nil && n > 1 && strconv.Itoa(n) == suffix[1:]
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Recorder accumulates telemetry for an in-progress run. It is safe for
// concurrent use.
type Recorder struct {
	dir string
	now func() time.Time

	mu     sync.Mutex
	run    Run
	starts map[string]time.Time
}

// NewRecorder starts recording run id, saving into dir.
func NewRecorder(id, dir string, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		dir: dir,
		now: now,
		run: Run{
			ID:           id,
			StartedAt:    now().UTC(),
			StageSeconds: make(map[string]float64),
		},
		starts: make(map[string]time.Time),
	}
}

// ID returns the run id.
func (r *Recorder) ID() string {
	return r.run.ID
}

// SetOptions records the run mode.
func (r *Recorder) SetOptions(mode string, dryRun bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Mode = mode
	r.run.DryRun = dryRun
}

// StartStage marks the beginning of a stage.
func (r *Recorder) StartStage(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts[name] = r.now()
}

// EndStage records the elapsed time of a started stage.
func (r *Recorder) EndStage(name string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	start, ok := r.starts[name]
	if !ok {
		return 0
	}
	delete(r.starts, name)
	elapsed := r.now().Sub(start)
	r.run.StageSeconds[name] += elapsed.Seconds()
	return elapsed
}

// AddFiles counts discovered files.
func (r *Recorder) AddFiles(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.TotalFiles += n
}

// RecordExtraction counts one successful extraction. Usage only counts for
// live calls.
func (r *Recorder) RecordExtraction(result document.Result, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Processed++
	if result.IsReviewNeeded {
		r.run.ReviewNeeded++
	}
	if cached {
		r.run.Cached++
		return
	}
	r.run.LiveCalls++
	r.run.TokensIn += result.TokenUsage.PromptTokens
	r.run.TokensOut += result.TokenUsage.CandidatesTokens
	r.run.AISeconds += result.ProcessingTime
}

// RecordError counts a failed file.
func (r *Recorder) RecordError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Errors++
}

// RecordOrganized counts a placed file.
func (r *Recorder) RecordOrganized() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Organized++
}

// RecordDuplicate counts a file routed by the duplicate policy.
func (r *Recorder) RecordDuplicate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Duplicates++
}

// Snapshot returns a copy of the current record.
func (r *Recorder) Snapshot() Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.run
	out.StageSeconds = make(map[string]float64, len(r.run.StageSeconds))
	for k, v := range r.run.StageSeconds {
		out.StageSeconds[k] = v
	}
	return out
}

// Finish stamps the end time and returns the final record.
func (r *Recorder) Finish() Run {
	r.mu.Lock()
	r.run.FinishedAt = r.now().UTC()
	r.mu.Unlock()
	return r.Snapshot()
}

// Save writes the current record to <dir>/<id>.json atomically.
func (r *Recorder) Save() error {
	return Save(r.dir, r.Snapshot())
}

// Save writes run to <dir>/<id>.json atomically.
func Save(dir string, run Run) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create runs directory: %w", err)
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	path := filepath.Join(dir, run.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// List loads every run in dir, oldest first. Unreadable records are skipped
// and logged.
func List(dir string, logger *slog.Logger) ([]Run, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs directory: %w", err)
	}
	var out []Run
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		var run Run
		if err == nil {
			err = json.Unmarshal(data, &run)
		}
		if err != nil || run.ID == "" {
			if err == nil {
				err = errors.New("missing run_id")
			}
			logging.WarnWithContext(logger, "skipping unreadable run record", "run_record_corrupt",
				logging.String("file", name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "run excluded from status totals"),
			)
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Aggregate sums the counters of runs.
func Aggregate(runs []Run) Counters {
	var total Counters
	for _, run := range runs {
		total.Add(run.Counters)
	}
	return total
}
