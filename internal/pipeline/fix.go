package pipeline

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"coworker/internal/document"
	"coworker/internal/logging"
	"coworker/internal/manifest"
	"coworker/internal/review"
	"coworker/internal/services"
)

// StatusFixed is the manifest status of a fix entry.
const StatusFixed = "fixed"

// Edit lists the fields to overwrite. Nil fields are left unchanged.
type Edit struct {
	Date     *string
	Amount   *float64
	Merchant *string
	Currency *string
	DocType  *string
}

// IsEmpty reports whether the edit changes nothing.
func (e Edit) IsEmpty() bool {
	return e.Date == nil && e.Amount == nil && e.Merchant == nil && e.Currency == nil && e.DocType == nil
}

// FixResult reports a corrected cache entry.
type FixResult struct {
	Hash    string          `json:"hash"`
	Changed []string        `json:"changed"`
	Before  document.Result `json:"before"`
	After   document.Result `json:"after"`
	// Indexed is the number of catalog rows updated.
	Indexed int64 `json:"indexed"`
}

// Fix applies edit to the cached result matching prefix. The corrected
// result gets confidence 1.0 and is re-evaluated by the review policy, so a
// field that is still missing keeps it in review.
func (r *Runner) Fix(ctx context.Context, prefix string, edit Edit) (FixResult, error) {
	if edit.IsEmpty() {
		return FixResult{}, services.Wrap(services.ErrValidation, "", "fix", "nothing to change", nil)
	}
	lock, err := r.deps.Layout.Lock()
	if err != nil {
		return FixResult{}, err
	}
	defer lock.Unlock()

	entry, err := r.deps.Cache.FindByPrefix(prefix)
	if err != nil {
		return FixResult{}, services.Wrap(services.ErrNotFound, "", "fix", "resolve hash", err)
	}
	after, changed, err := applyEdit(entry.Result, edit, r.deps.Config.Extraction.Categories)
	if err != nil {
		return FixResult{}, err
	}
	after.Confidence = 1.0
	after.IsReviewNeeded = false
	after.ReviewReason = ""
	after = review.Apply(after, r.deps.Config.Extraction.ConfidenceThreshold)

	if err := r.deps.Cache.Put(entry.Hash, after); err != nil {
		return FixResult{}, fmt.Errorf("save corrected result: %w", err)
	}
	out := FixResult{Hash: entry.Hash, Changed: changed, Before: entry.Result, After: after}

	logger := logging.WithContext(ctx, r.logger)
	if r.deps.Catalog != nil {
		rows, err := r.deps.Catalog.UpdateResult(ctx, entry.Hash, after)
		if err != nil {
			logging.WarnWithContext(logger, "failed to update catalog", "catalog_update_failed",
				logging.String(logging.FieldHash, entry.Hash),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete .system/catalog.db to rebuild it on the next run"),
				logging.String(logging.FieldImpact, "coworker list shows the old values"),
			)
		}
		out.Indexed = rows
	}

	r.appendEntry(logger, manifest.Entry{
		Event:  manifest.EventFix,
		Hash:   entry.Hash,
		Source: r.sourceName(entry.Hash),
		Status: StatusFixed,
		Details: map[string]any{
			"changed":       changed,
			"review_needed": after.IsReviewNeeded,
		},
	})
	logger.Info("result corrected",
		logging.String(logging.FieldHash, entry.Hash),
		logging.String("changed", strings.Join(changed, ",")),
		logging.Bool("review_needed", after.IsReviewNeeded),
	)
	return out, nil
}

func (r *Runner) sourceName(hash string) string {
	entries, _, err := r.deps.Manifest.Filter(func(e manifest.Entry) bool {
		return e.Event == manifest.EventIngest && e.Hash == hash
	})
	if err == nil {
		if name, ok := manifest.SourceNames(entries)[hash]; ok {
			return name
		}
	}
	return hash
}

func applyEdit(result document.Result, edit Edit, categories []string) (document.Result, []string, error) {
	out := result
	out.UncertainFields = slices.Clone(result.UncertainFields)
	var changed []string
	if edit.Date != nil {
		date := strings.TrimSpace(*edit.Date)
		if date != "" {
			if _, err := time.Parse(time.DateOnly, date); err != nil {
				return result, nil, services.Wrap(services.ErrValidation, "", "fix", fmt.Sprintf("date %q is not YYYY-MM-DD", date), nil)
			}
		}
		out.DocDate = date
		changed = append(changed, "doc_date")
	}
	if edit.Amount != nil {
		amount := *edit.Amount
		if math.IsNaN(amount) || math.IsInf(amount, 0) {
			return result, nil, services.Wrap(services.ErrValidation, "", "fix", "amount must be a finite number", nil)
		}
		out.TotalAmount = document.Float(amount)
		changed = append(changed, "total_amount")
	}
	if edit.Merchant != nil {
		out.Merchant = strings.TrimSpace(*edit.Merchant)
		changed = append(changed, "merchant")
	}
	if edit.Currency != nil {
		out.Currency = strings.ToUpper(strings.TrimSpace(*edit.Currency))
		changed = append(changed, "currency")
	}
	if edit.DocType != nil {
		out.DocType = document.NormalizeDocType(*edit.DocType, categories)
		changed = append(changed, "doc_type")
	}
	out.UncertainFields = slices.DeleteFunc(out.UncertainFields, func(field string) bool {
		return field == "all" || slices.Contains(changed, field)
	})
	return out, changed, nil
}
