package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxNameRunes bounds sanitized name segments.
const MaxNameRunes = 50

// illegalRunes are stripped because at least one supported filesystem rejects them.
const illegalRunes = `<>:"/\|?*`

// Sanitize turns value into a single path segment: illegal and control
// characters are removed, the text is NFC normalized, whitespace runs become
// one underscore, and the result is truncated to MaxNameRunes runes.
// An empty result means the caller should substitute its own placeholder.
func Sanitize(value string) string {
	value = norm.NFC.String(value)
	var b strings.Builder
	b.Grow(len(value))
	pendingSpace := false
	for _, r := range strings.TrimSpace(value) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case unicode.IsControl(r), strings.ContainsRune(illegalRunes, r):
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	out := b.String()
	if runes := []rune(out); len(runes) > MaxNameRunes {
		out = string(runes[:MaxNameRunes])
	}
	return strings.Trim(out, ". ")
}

// SanitizeOr returns Sanitize(value), or fallback when nothing survives.
func SanitizeOr(value, fallback string) string {
	if out := Sanitize(value); out != "" {
		return out
	}
	return fallback
}
