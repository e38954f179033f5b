package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers classify failures. Callers test them with errors.Is.
var (
	ErrExternalTool  = errors.New("external service error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// kinds is checked in order, so a timeout wrapped as transient keeps its
// own label.
var kinds = []struct {
	marker error
	label  string
}{
	{ErrTimeout, "timeout"},
	{ErrTransient, "transient"},
	{ErrExternalTool, "external"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
}

// Wrap tags err with marker and prefixes it with "stage: operation: message",
// skipping empty parts. A nil marker means ErrTransient; a nil err yields a
// leaf error.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	var parts []string
	for _, part := range []string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "service failure"
	}
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// ErrorKind returns the short label recorded in manifest details and log
// attributes. Unmarked errors are reported as "io".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.label
		}
	}
	return "io"
}
