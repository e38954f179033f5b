package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const recordColumns = "destination, hash, source, status, doc_type, doc_date, merchant, amount, currency, confidence, review_needed, review_reason, run_id, updated_at"

// Filter narrows List. Zero fields match everything.
type Filter struct {
	DocType string
	// Month is YYYY-MM.
	Month    string
	Merchant string
	Review   *bool
	RunID    string
	Limit    int
}

// List returns matching records, newest document date first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.DocType != "" {
		clauses = append(clauses, "doc_type = ? COLLATE NOCASE")
		args = append(args, filter.DocType)
	}
	if filter.Month != "" {
		clauses = append(clauses, "month = ?")
		args = append(args, filter.Month)
	}
	if filter.Merchant != "" {
		clauses = append(clauses, "merchant LIKE ?")
		args = append(args, "%"+filter.Merchant+"%")
	}
	if filter.Review != nil {
		clauses = append(clauses, "review_needed = ?")
		args = append(args, boolToInt(*filter.Review))
	}
	if filter.RunID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, filter.RunID)
	}

	query := "SELECT " + recordColumns + " FROM documents"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY doc_date IS NULL, doc_date DESC, destination"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Counts holds catalog totals.
type Counts struct {
	Documents int            `json:"documents"`
	Review    int            `json:"review"`
	ByType    map[string]int `json:"by_type"`
}

// Count returns catalog totals.
func (s *Store) Count(ctx context.Context) (Counts, error) {
	counts := Counts{ByType: make(map[string]int)}
	rows, err := s.db.QueryContext(ctx, "SELECT doc_type, COUNT(1), SUM(review_needed) FROM documents GROUP BY doc_type")
	if err != nil {
		return counts, fmt.Errorf("count documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			docType string
			total   int
			review  sql.NullInt64
		)
		if err := rows.Scan(&docType, &total, &review); err != nil {
			return counts, fmt.Errorf("scan counts: %w", err)
		}
		counts.ByType[docType] = total
		counts.Documents += total
		counts.Review += int(review.Int64)
	}
	return counts, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec          Record
		docDate      sql.NullString
		merchant     sql.NullString
		amount       sql.NullFloat64
		currency     sql.NullString
		reviewNeeded sql.NullInt64
		reviewReason sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&rec.Destination,
		&rec.Hash,
		&rec.Source,
		&rec.Status,
		&rec.DocType,
		&docDate,
		&merchant,
		&amount,
		&currency,
		&rec.Confidence,
		&reviewNeeded,
		&reviewReason,
		&rec.RunID,
		&updatedRaw,
	); err != nil {
		return Record{}, err
	}
	rec.DocDate = docDate.String
	rec.Merchant = merchant.String
	if amount.Valid {
		v := amount.Float64
		rec.Amount = &v
	}
	rec.Currency = currency.String
	rec.ReviewNeeded = reviewNeeded.Int64 != 0
	rec.ReviewReason = reviewReason.String
	rec.UpdatedAt = parseTime(updatedRaw)
	return rec, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTime(value sql.NullString) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
