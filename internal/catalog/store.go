package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"coworker/internal/document"
)

// Store manages the catalog database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the catalog database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record is one placed document.
type Record struct {
	Destination  string    `json:"destination"`
	Hash         string    `json:"hash"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	DocType      string    `json:"doc_type"`
	DocDate      string    `json:"doc_date,omitempty"`
	Merchant     string    `json:"merchant,omitempty"`
	Amount       *float64  `json:"amount,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	Confidence   float64   `json:"confidence"`
	ReviewNeeded bool      `json:"review_needed"`
	ReviewReason string    `json:"review_reason,omitempty"`
	RunID        string    `json:"run_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewRecord builds a record for a placement of result.
func NewRecord(hash, source, destination, status, runID string, result document.Result) Record {
	return Record{
		Destination:  destination,
		Hash:         hash,
		Source:       source,
		Status:       status,
		DocType:      result.DocType,
		DocDate:      result.DocDate,
		Merchant:     result.Merchant,
		Amount:       result.TotalAmount,
		Currency:     result.Currency,
		Confidence:   result.Confidence,
		ReviewNeeded: result.IsReviewNeeded,
		ReviewReason: result.ReviewReason,
		RunID:        runID,
	}
}

// Upsert inserts or replaces the record for rec.Destination.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.Destination) == "" {
		return errors.New("catalog upsert: destination required")
	}
	rec.UpdatedAt = s.now().UTC()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO documents (
            destination, hash, source, status, doc_type, doc_date, month, merchant,
            amount, currency, confidence, review_needed, review_reason, run_id, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(destination) DO UPDATE SET
            hash = excluded.hash, source = excluded.source, status = excluded.status,
            doc_type = excluded.doc_type, doc_date = excluded.doc_date, month = excluded.month,
            merchant = excluded.merchant, amount = excluded.amount, currency = excluded.currency,
            confidence = excluded.confidence, review_needed = excluded.review_needed,
            review_reason = excluded.review_reason, run_id = excluded.run_id,
            updated_at = excluded.updated_at`,
		rec.Destination,
		rec.Hash,
		rec.Source,
		rec.Status,
		rec.DocType,
		nullableString(rec.DocDate),
		nullableString(document.Result{DocDate: rec.DocDate}.Month()),
		nullableString(rec.Merchant),
		nullableFloat(rec.Amount),
		nullableString(rec.Currency),
		rec.Confidence,
		boolToInt(rec.ReviewNeeded),
		nullableString(rec.ReviewReason),
		rec.RunID,
		rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// UpdateResult rewrites the extracted fields of every row for hash. It
// returns the number of rows changed.
func (s *Store) UpdateResult(ctx context.Context, hash string, result document.Result) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE documents
         SET doc_type = ?, doc_date = ?, month = ?, merchant = ?, amount = ?, currency = ?,
             confidence = ?, review_needed = ?, review_reason = ?, updated_at = ?
         WHERE hash = ?`,
		result.DocType,
		nullableString(result.DocDate),
		nullableString(result.Month()),
		nullableString(result.Merchant),
		nullableFloat(result.TotalAmount),
		nullableString(result.Currency),
		result.Confidence,
		boolToInt(result.IsReviewNeeded),
		nullableString(result.ReviewReason),
		s.now().UTC().Format(time.RFC3339Nano),
		hash,
	)
	if err != nil {
		return 0, fmt.Errorf("update documents: %w", err)
	}
	return res.RowsAffected()
}

// DeleteRun removes the rows placed by runID.
func (s *Store) DeleteRun(ctx context.Context, runID string) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM documents WHERE run_id = ?`, runID)
	if err != nil {
		return 0, fmt.Errorf("delete run documents: %w", err)
	}
	return res.RowsAffected()
}
