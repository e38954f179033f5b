package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimestampLayout = "2006-01-02 15:04:05"

// prettyHandler writes a human oriented two-part record: a header line with
// the time, level, component and run/stage/file subject, followed by one
// indented line per remaining attribute.
type prettyHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	prefix    string
	attrs     []field
}

type field struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	return &prettyHandler{mu: new(sync.Mutex), w: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], flatten(h.prefix, attrs)...)
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, flatten(h.prefix, []slog.Attr{attr})...)
		return true
	})

	// Later values win; header keys are lifted out of the field list.
	header := map[string]string{}
	seen := map[string]int{}
	body := fields[:0:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent, FieldRunID, FieldStage, FieldFile:
			header[f.key] = formatValue(f.value, false)
			continue
		}
		if i, ok := seen[f.key]; ok {
			body[i].value = f.value
			continue
		}
		seen[f.key] = len(body)
		body = append(body, f)
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.Local().Format(consoleTimestampLayout))
	b.WriteString(" " + levelLabel(record.Level))
	if c := header[FieldComponent]; c != "" {
		b.WriteString(" [" + c + "]")
	}
	if s := subject(header[FieldRunID], header[FieldStage], header[FieldFile]); s != "" {
		b.WriteString(" " + s)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(" - " + msg)
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteByte('\n')
	for _, f := range body {
		b.WriteString("    - " + f.key + ": " + formatValue(f.value, true) + "\n")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// subject renders "Run <id> (<stage>) <file>", omitting empty parts.
func subject(runID, stage, file string) string {
	var parts []string
	if runID != "" {
		parts = append(parts, "Run "+runID)
	}
	if stage != "" {
		if len(parts) > 0 {
			stage = "(" + stage + ")"
		}
		parts = append(parts, stage)
	}
	if file != "" {
		parts = append(parts, file)
	}
	return strings.Join(parts, " ")
}

func flatten(prefix string, attrs []slog.Attr) []field {
	var out []field
	for _, attr := range attrs {
		if attr.Equal(slog.Attr{}) {
			continue
		}
		value := attr.Value.Resolve()
		if value.Kind() == slog.KindGroup {
			nested := prefix
			if attr.Key != "" {
				nested += attr.Key + "."
			}
			out = append(out, flatten(nested, value.Group())...)
			continue
		}
		out = append(out, field{key: prefix + attr.Key, value: value})
	}
	return out
}

func formatValue(v slog.Value, quote bool) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		s = strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		s = v.Time().Local().Format(consoleTimestampLayout)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if quote && (s == "" || strings.ContainsFunc(s, func(r rune) bool { return r < ' ' || r == '"' })) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
