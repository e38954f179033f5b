package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Acme", want: "Acme"},
		{name: "illegal", in: `A<c>m:e"/\|?*`, want: "Acme"},
		{name: "spaces", in: "  Corner   Shop\tLtd ", want: "Corner_Shop_Ltd"},
		{name: "control", in: "Bad\x00\x07Name", want: "BadName"},
		{name: "nfc", in: "Cafe\u0301", want: "Caf\u00e9"},
		{name: "dots", in: "..", want: ""},
		{name: "empty", in: "   ", want: ""},
		{name: "reason", in: "Missing Date, Low Confidence", want: "Missing_Date,_Low_Confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeTruncatesRunes(t *testing.T) {
	in := strings.Repeat("é", 80)
	got := Sanitize(in)
	if n := utf8.RuneCountInString(got); n != MaxNameRunes {
		t.Fatalf("expected %d runes, got %d", MaxNameRunes, n)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a rune")
	}
}

func TestSanitizeOr(t *testing.T) {
	if got := SanitizeOr("???", "Unknown"); got != "Unknown" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := SanitizeOr("Shop", "Unknown"); got != "Shop" {
		t.Fatalf("expected Shop, got %q", got)
	}
}
