package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// check is one labelled line of doctor or status output.
type check struct {
	Label   string     `json:"label"`
	Kind    statusKind `json:"-"`
	Status  string     `json:"status"`
	Message string     `json:"message,omitempty"`
}

func newCheck(label string, kind statusKind, format string, args ...any) check {
	return check{Label: label, Kind: kind, Status: statusStyles[kind].label, Message: fmt.Sprintf(format, args...)}
}

func (c check) render(colorize bool) string {
	line := fmt.Sprintf("  %-20s [%s]", c.Label+":", statusStyles[c.Kind].label)
	if c.Message != "" {
		line += " " + c.Message
	}
	if colorize {
		return statusStyles[c.Kind].color + line + ansiReset
	}
	return line
}

func writeSection(out io.Writer, title string, checks []check, colorize bool) {
	header := "== " + title + " =="
	if colorize {
		header = statusStyles[statusInfo].color + header + ansiReset
	}
	fmt.Fprintln(out, header)
	for _, c := range checks {
		fmt.Fprintln(out, c.render(colorize))
	}
}

// shouldColorize reports whether w is a terminal.
func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
