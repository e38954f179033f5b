package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"coworker/internal/document"
	"coworker/internal/extractcache"
	"coworker/internal/manifest"
	"coworker/internal/workspace"
)

// File names inside the exports directory.
const (
	WorkbookName  = "master.xlsx"
	ReviewCSVName = "review.csv"
)

// Row is one cached result with its resolved source name.
type Row struct {
	Hash       string
	SourceName string
	Result     document.Result
}

// Paths lists the files an export wrote.
type Paths struct {
	Workbook  string `json:"workbook"`
	ReviewCSV string `json:"review_csv"`
	Rows      int    `json:"rows"`
}

// Collect loads every cached result and names it after the first ingested
// source with the same hash. Rows are ordered by date, then hash.
func Collect(cache *extractcache.Cache, log *manifest.Log) ([]Row, error) {
	entries, err := cache.List()
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	if log != nil {
		ingested, _, err := log.Filter(func(e manifest.Entry) bool { return e.Event == manifest.EventIngest })
		if err != nil {
			return nil, err
		}
		names = manifest.SourceNames(ingested)
	}
	rows := make([]Row, 0, len(entries))
	for _, entry := range entries {
		name := names[entry.Hash]
		if name == "" {
			name = entry.Hash
		}
		rows = append(rows, Row{Hash: entry.Hash, SourceName: name, Result: entry.Result})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Result.DocDate != rows[j].Result.DocDate {
			return rows[i].Result.DocDate < rows[j].Result.DocDate
		}
		return rows[i].Hash < rows[j].Hash
	})
	return rows, nil
}

// Run collects the cache and writes both reports into the workspace.
func Run(layout workspace.Layout, cache *extractcache.Cache, log *manifest.Log, dev bool) (Paths, error) {
	rows, err := Collect(cache, log)
	if err != nil {
		return Paths{}, err
	}
	paths := Paths{
		Workbook:  filepath.Join(layout.Exports, WorkbookName),
		ReviewCSV: filepath.Join(layout.Exports, ReviewCSVName),
		Rows:      len(rows),
	}
	if err := os.MkdirAll(layout.Exports, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create exports directory: %w", err)
	}
	if err := WriteWorkbook(paths.Workbook, rows, dev); err != nil {
		return Paths{}, err
	}
	if err := WriteReviewCSV(paths.ReviewCSV, rows); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

// WriteReviewCSV writes the rows that need review.
func WriteReviewCSV(path string, rows []Row) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"hash", "source_file", "doc_type", "doc_date", "merchant", "amount", "currency", "confidence", "review_reason"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write review header: %w", err)
	}
	for _, row := range rows {
		r := row.Result
		if !r.IsReviewNeeded {
			continue
		}
		amount := ""
		if r.TotalAmount != nil {
			amount = strconv.FormatFloat(*r.TotalAmount, 'f', -1, 64)
		}
		record := []string{
			row.Hash,
			row.SourceName,
			r.DocType,
			r.DocDate,
			r.Merchant,
			amount,
			r.Currency,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			r.ReviewReason,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write review row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush review csv: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", filepath.Base(path), err)
	}
	return nil
}
