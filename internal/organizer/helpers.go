package organizer

import (
	"path/filepath"
	"strconv"
	"strings"

	"coworker/internal/document"
	"coworker/internal/textutil"
	"coworker/internal/workspace"
)

const (
	nameSeparator = "__"
	unknownPart   = "Unknown"
	hashPrefixLen = 8
)

// DestinationDir returns the folder a result belongs in.
func DestinationDir(layout workspace.Layout, result document.Result) string {
	if result.IsReviewNeeded {
		return filepath.Join(layout.Review, textutil.SanitizeOr(result.ReviewReason, "Needs_Review"))
	}
	month := result.Month()
	if month == "" {
		month = unknownPart
	}
	return filepath.Join(layout.Organized, month, textutil.SanitizeOr(result.DocType, document.TypeOther))
}

// FileName builds the organized file name for result, keeping ext as given.
func FileName(result document.Result, hash, ext string) string {
	date := strings.TrimSpace(result.DocDate)
	if date == "" {
		date = unknownPart
	}
	parts := []string{
		textutil.SanitizeOr(date, unknownPart),
		textutil.SanitizeOr(result.DocType, document.TypeOther),
		textutil.SanitizeOr(result.Merchant, unknownPart),
		FormatAmount(result),
		shortHash(hash),
	}
	return strings.Join(parts, nameSeparator) + ext
}

// FormatAmount renders the amount in its shortest decimal form followed by
// the currency code, or "0" when no amount was extracted.
func FormatAmount(result document.Result) string {
	if !result.HasAmount() {
		return "0"
	}
	return strconv.FormatFloat(result.Amount(), 'f', -1, 64) + textutil.Sanitize(result.Currency)
}

func shortHash(hash string) string {
	if len(hash) > hashPrefixLen {
		return hash[:hashPrefixLen]
	}
	return hash
}
