package document

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestNormalizeDocType(t *testing.T) {
	categories := []string{"Receipt", "Invoice", "Tax Form", "Other"}
	tests := []struct {
		in   string
		want string
	}{
		{in: "receipt", want: "Receipt"},
		{in: " INVOICE ", want: "Invoice"},
		{in: "tax form", want: "Tax Form"},
		{in: "Statement", want: "Other"},
		{in: "", want: "Other"},
	}
	for _, tt := range tests {
		if got := NormalizeDocType(tt.in, categories); got != tt.want {
			t.Fatalf("NormalizeDocType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := NormalizeDocType("statement", nil); got != TypeStatement {
		t.Fatalf("expected built-in match without categories, got %q", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: -0.5, want: 0},
		{in: 1.7, want: 1},
		{in: 0.42, want: 0.42},
		{in: math.NaN(), want: 0},
	}
	for _, tt := range tests {
		r := Result{Confidence: tt.in}
		r.Clamp()
		if r.Confidence != tt.want {
			t.Fatalf("Clamp(%v) = %v, want %v", tt.in, r.Confidence, tt.want)
		}
		if r.UncertainFields == nil {
			t.Fatal("expected uncertain fields initialised")
		}
	}
}

func TestMonth(t *testing.T) {
	tests := map[string]string{
		"2024-03-15": "2024-03",
		"2024-13-01": "",
		"":           "",
		"March":      "",
	}
	for in, want := range tests {
		if got := (Result{DocDate: in}).Month(); got != want {
			t.Fatalf("Month(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHasAmountTreatsZeroAsMissing(t *testing.T) {
	if (Result{}).HasAmount() {
		t.Fatal("nil amount should be missing")
	}
	if (Result{TotalAmount: Float(0)}).HasAmount() {
		t.Fatal("zero amount should be missing")
	}
	if !(Result{TotalAmount: Float(12.5)}).HasAmount() {
		t.Fatal("12.5 should be present")
	}
}

func TestResultJSONFieldNames(t *testing.T) {
	r := ParseFailure()
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"doc_type":"Other"`, `"confidence":0`, `"uncertain_fields":["all"]`, `"is_review_needed":true`, `"review_reason":"Parse Error"`, `"token_usage"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("expected %s in %s", key, data)
		}
	}
	if !r.HasParseError() {
		t.Fatal("expected parse error marker")
	}
}
