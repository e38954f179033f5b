package document

import (
	"math"
	"strings"
	"time"
)

// Built-in document types.
const (
	TypeReceipt   = "Receipt"
	TypeInvoice   = "Invoice"
	TypeStatement = "Statement"
	TypeContract  = "Contract"
	TypeOther     = "Other"
)

// ReasonParseError marks a result synthesized from an unusable service reply.
const ReasonParseError = "Parse Error"

// Info holds optional probe data gathered during ingest.
type Info struct {
	Pages  int `json:"pages,omitempty"`
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// IsZero reports whether no probe data was recorded.
func (i Info) IsZero() bool {
	return i.Pages == 0 && i.Width == 0 && i.Height == 0
}

// File is a candidate discovered by ingest. Hash is computed once per run.
type File struct {
	Path    string
	RelPath string
	Name    string
	Size    int64
	Hash    string
	Mime    string
	ModTime time.Time
	Info    Info
}

// LineItem is a single line of an itemized document.
type LineItem struct {
	Description string   `json:"description"`
	Amount      *float64 `json:"amount,omitempty"`
}

// TokenUsage records the service usage counters for one extraction.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CandidatesTokens int `json:"candidates_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the structured extraction for one content hash.
type Result struct {
	DocType         string     `json:"doc_type"`
	DocDate         string     `json:"doc_date,omitempty"`
	Merchant        string     `json:"merchant,omitempty"`
	TotalAmount     *float64   `json:"total_amount,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	Lines           []LineItem `json:"lines,omitempty"`
	Confidence      float64    `json:"confidence"`
	UncertainFields []string   `json:"uncertain_fields"`
	IsReviewNeeded  bool       `json:"is_review_needed"`
	ReviewReason    string     `json:"review_reason,omitempty"`
	ProcessingTime  float64    `json:"processing_time"`
	TokenUsage      TokenUsage `json:"token_usage"`
	Model           string     `json:"model,omitempty"`
	ExtractedAt     time.Time  `json:"extracted_at,omitzero"`
}

// ParseFailure returns the synthetic result recorded when the service reply
// cannot be parsed into a Result.
func ParseFailure() Result {
	return Result{
		DocType:         TypeOther,
		Summary:         "Extraction failed to parse",
		Confidence:      0,
		UncertainFields: []string{"all"},
		IsReviewNeeded:  true,
		ReviewReason:    ReasonParseError,
	}
}

// HasDate reports whether a document date was extracted.
func (r Result) HasDate() bool {
	return strings.TrimSpace(r.DocDate) != ""
}

// HasAmount reports whether a non-zero total amount was extracted.
func (r Result) HasAmount() bool {
	return r.TotalAmount != nil && *r.TotalAmount != 0
}

// Amount returns the total amount or 0 when missing.
func (r Result) Amount() float64 {
	if r.TotalAmount == nil {
		return 0
	}
	return *r.TotalAmount
}

// Month returns the YYYY-MM prefix of the document date, or "" when the date
// is missing or malformed.
func (r Result) Month() string {
	date := strings.TrimSpace(r.DocDate)
	if len(date) < 7 {
		return ""
	}
	if _, err := time.Parse("2006-01", date[:7]); err != nil {
		return ""
	}
	return date[:7]
}

// Clamp bounds confidence to [0,1] and replaces NaN with 0.
func (r *Result) Clamp() {
	switch {
	case math.IsNaN(r.Confidence), r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1:
		r.Confidence = 1
	}
	if r.UncertainFields == nil {
		r.UncertainFields = []string{}
	}
}

// HasParseError reports whether the result was synthesized from a parse failure.
func (r Result) HasParseError() bool {
	return strings.HasPrefix(r.ReviewReason, ReasonParseError)
}

// Float returns a pointer to v, for optional amounts.
func Float(v float64) *float64 {
	return &v
}
