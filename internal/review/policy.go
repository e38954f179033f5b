package review

import (
	"strings"

	"coworker/internal/document"
)

// Reasons emitted by the policy.
const (
	ReasonMissingDate   = "Missing Date"
	ReasonMissingAmount = "Missing Amount"
	ReasonLowConfidence = "Low Confidence"
)

const (
	// DefaultThreshold is the confidence below which a result is routed to review.
	DefaultThreshold = 0.7
	// MissingFieldCap bounds confidence when a required field is missing.
	MissingFieldCap = 0.6
)

// Decision is the outcome of evaluating one result.
type Decision struct {
	NeedsReview bool
	Reason      string
	Confidence  float64
	Reasons     []string
}

// Evaluate applies the review rules to result. A non-positive threshold
// falls back to DefaultThreshold.
func Evaluate(result document.Result, threshold float64) Decision {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	confidence := result.Confidence
	// A parse failure has no fields to judge.
	if result.HasParseError() {
		return Decision{
			NeedsReview: true,
			Reason:      document.ReasonParseError,
			Confidence:  confidence,
			Reasons:     []string{document.ReasonParseError},
		}
	}
	var reasons []string

	fieldMissing := false
	if !result.HasDate() {
		reasons = append(reasons, ReasonMissingDate)
		fieldMissing = true
	}
	if !result.HasAmount() {
		reasons = append(reasons, ReasonMissingAmount)
		fieldMissing = true
	}
	if fieldMissing && confidence > MissingFieldCap {
		confidence = MissingFieldCap
	}
	if confidence < threshold && len(reasons) == 0 {
		reasons = append(reasons, ReasonLowConfidence)
	}

	return Decision{
		NeedsReview: len(reasons) > 0,
		Reason:      strings.Join(reasons, ", "),
		Confidence:  confidence,
		Reasons:     reasons,
	}
}

// Apply returns a copy of result with the decision written into it.
// Any review fields already present are replaced.
func Apply(result document.Result, threshold float64) document.Result {
	decision := Evaluate(result, threshold)
	result.Confidence = decision.Confidence
	result.IsReviewNeeded = decision.NeedsReview
	result.ReviewReason = decision.Reason
	return result
}
