package organizer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"coworker/internal/config"
	"coworker/internal/document"
	"coworker/internal/organizer"
	"coworker/internal/testsupport"
	"coworker/internal/workspace"
)

const testHash = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func confidentResult() document.Result {
	return document.Result{
		DocType:     "Receipt",
		DocDate:     "2024-03-15",
		Merchant:    "Corner Cafe",
		TotalAmount: document.Float(12.5),
		Currency:    "USD",
		Confidence:  0.9,
	}
}

func newInboxFile(t *testing.T, layout workspace.Layout, name, content string) string {
	t.Helper()
	path := filepath.Join(layout.Inbox, name)
	testsupport.WriteContent(t, path, content)
	return path
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name   string
		result document.Result
		want   string
	}{
		{name: "complete", result: confidentResult(), want: "2024-03-15__Receipt__Corner_Cafe__12.5USD__01234567.jpg"},
		{name: "missing fields", result: document.Result{DocType: "Other"}, want: "Unknown__Other__Unknown__0__01234567.jpg"},
		{name: "whole amount", result: document.Result{DocType: "Invoice", DocDate: "2024-01-02", Merchant: "A/B: Co", TotalAmount: document.Float(100), Currency: "EUR"}, want: "2024-01-02__Invoice__AB_Co__100EUR__01234567.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := organizer.FileName(tt.result, testHash, ".jpg"); got != tt.want {
				t.Fatalf("FileName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDestinationDir(t *testing.T) {
	layout := testsupport.NewWorkspace(t)
	if got, want := organizer.DestinationDir(layout, confidentResult()), filepath.Join(layout.Organized, "2024-03", "Receipt"); got != want {
		t.Fatalf("organized dir = %q, want %q", got, want)
	}
	undated := document.Result{DocType: "Invoice"}
	if got, want := organizer.DestinationDir(layout, undated), filepath.Join(layout.Organized, "Unknown", "Invoice"); got != want {
		t.Fatalf("undated dir = %q, want %q", got, want)
	}
	flagged := document.Result{DocType: "Other", IsReviewNeeded: true, ReviewReason: "Missing Date, Low Confidence"}
	if got, want := organizer.DestinationDir(layout, flagged), filepath.Join(layout.Review, "Missing_Date,_Low_Confidence"); got != want {
		t.Fatalf("review dir = %q, want %q", got, want)
	}
}

func TestOrganizeMoveStagesBackup(t *testing.T) {
	layout := testsupport.NewWorkspace(t)
	source := newInboxFile(t, layout, "scan.jpg", "receipt-bytes")
	trashDir := layout.TrashDir("20240501_120000")

	org := organizer.New(layout, nil)
	outcome, err := org.Organize(context.Background(), organizer.Request{
		Source:   source,
		Result:   confidentResult(),
		Hash:     testHash,
		Mode:     config.ModeMove,
		TrashDir: trashDir,
	})
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	want := filepath.Join(layout.Organized, "2024-03", "Receipt", "2024-03-15__Receipt__Corner_Cafe__12.5USD__01234567.jpg")
	if outcome.Status != organizer.StatusOrganized || outcome.Destination != want {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("expected source moved, stat err=%v", err)
	}
	if got := testsupport.ReadContent(t, want); got != "receipt-bytes" {
		t.Fatalf("unexpected destination content %q", got)
	}
	backup := filepath.Join(trashDir, "inbox", "scan.jpg")
	if outcome.Backup != backup || testsupport.ReadContent(t, backup) != "receipt-bytes" {
		t.Fatalf("expected backup at %s, got %+v", backup, outcome)
	}
}

func TestOrganizeCopyKeepsSource(t *testing.T) {
	layout := testsupport.NewWorkspace(t)
	source := newInboxFile(t, layout, "scan.pdf", "pdf-bytes")

	org := organizer.New(layout, nil)
	outcome, err := org.Organize(context.Background(), organizer.Request{
		Source:   source,
		Result:   confidentResult(),
		Hash:     testHash,
		Mode:     config.ModeCopy,
		TrashDir: layout.TrashDir("run"),
	})
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if outcome.Backup != "" {
		t.Fatalf("copy mode should not stage a backup, got %q", outcome.Backup)
	}
	if testsupport.ReadContent(t, source) != "pdf-bytes" || testsupport.ReadContent(t, outcome.Destination) != "pdf-bytes" {
		t.Fatal("expected source and copy to match")
	}
}

func TestOrganizeCollisionsNeverOverwrite(t *testing.T) {
	layout := testsupport.NewWorkspace(t)
	org := organizer.New(layout, nil)

	var destinations []string
	for i, content := range []string{"first", "second", "third"} {
		source := newInboxFile(t, layout, "scan.jpg", content)
		outcome, err := org.Organize(context.Background(), organizer.Request{
			Source: source,
			Result: confidentResult(),
			Hash:   testHash,
			Mode:   config.ModeMove,
		})
		if err != nil {
			t.Fatalf("Organize %d: %v", i, err)
		}
		destinations = append(destinations, outcome.Destination)
	}
	dir := filepath.Join(layout.Organized, "2024-03", "Receipt")
	base := "2024-03-15__Receipt__Corner_Cafe__12.5USD__01234567"
	want := []string{
		filepath.Join(dir, base+".jpg"),
		filepath.Join(dir, base+"_1.jpg"),
		filepath.Join(dir, base+"_2.jpg"),
	}
	for i := range want {
		if destinations[i] != want[i] {
			t.Fatalf("destination %d = %q, want %q", i, destinations[i], want[i])
		}
	}
	if testsupport.ReadContent(t, want[0]) != "first" {
		t.Fatal("first placement was overwritten")
	}
}

func TestOrganizeDryRunDoesNotMutate(t *testing.T) {
	layout := testsupport.NewWorkspace(t)
	source := newInboxFile(t, layout, "scan.jpg", "bytes")
	trashDir := layout.TrashDir("run")

	org := organizer.New(layout, nil)
	outcome, err := org.Organize(context.Background(), organizer.Request{
		Source:   source,
		Result:   confidentResult(),
		Hash:     testHash,
		Mode:     config.ModeMove,
		DryRun:   true,
		TrashDir: trashDir,
	})
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if outcome.Status != organizer.StatusSkipped || outcome.Destination == "" {
		t.Fatalf("unexpected dry-run outcome %+v", outcome)
	}
	if testsupport.ReadContent(t, source) != "bytes" {
		t.Fatal("dry run touched the source")
	}
	if _, err := os.Stat(filepath.Join(layout.Organized, "2024-03")); !os.IsNotExist(err) {
		t.Fatalf("dry run created directories, err=%v", err)
	}
	if _, err := os.Stat(trashDir); !os.IsNotExist(err) {
		t.Fatalf("dry run staged trash, err=%v", err)
	}
}

func TestOrganizeRoutesReview(t *testing.T) {
	layout := testsupport.NewWorkspace(t)
	source := newInboxFile(t, layout, "blurry.png", "bytes")
	result := document.ParseFailure()

	org := organizer.New(layout, nil)
	outcome, err := org.Organize(context.Background(), organizer.Request{Source: source, Result: result, Hash: testHash, Mode: config.ModeCopy})
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	want := filepath.Join(layout.Review, "Parse_Error", "Unknown__Other__Unknown__0__01234567.png")
	if outcome.Destination != want {
		t.Fatalf("destination = %q, want %q", outcome.Destination, want)
	}
}

func TestOrganizeDuplicate(t *testing.T) {
	layout := testsupport.NewWorkspace(t)
	org := organizer.New(layout, nil)
	first := newInboxFile(t, layout, "copy.jpg", "same")
	other := filepath.Join(layout.Inbox, "nested", "copy.jpg")
	testsupport.WriteContent(t, other, "same")

	a, err := org.OrganizeDuplicate(context.Background(), organizer.Request{Source: first, Hash: testHash, Mode: config.ModeMove})
	if err != nil {
		t.Fatalf("OrganizeDuplicate: %v", err)
	}
	b, err := org.OrganizeDuplicate(context.Background(), organizer.Request{Source: other, Hash: testHash, Mode: config.ModeMove})
	if err != nil {
		t.Fatalf("OrganizeDuplicate second: %v", err)
	}
	if a.Status != organizer.StatusDuplicate || a.Destination != filepath.Join(layout.Duplicates, "copy.jpg") {
		t.Fatalf("unexpected first duplicate %+v", a)
	}
	if b.Destination != filepath.Join(layout.Duplicates, "copy_1.jpg") {
		t.Fatalf("unexpected second duplicate %+v", b)
	}
}

func TestOrganizeMissingSource(t *testing.T) {
	layout := testsupport.NewWorkspace(t)
	org := organizer.New(layout, nil)
	outcome, err := org.Organize(context.Background(), organizer.Request{
		Source: filepath.Join(layout.Inbox, "gone.jpg"),
		Result: confidentResult(),
		Hash:   testHash,
	})
	if err == nil || outcome.Status != organizer.StatusError {
		t.Fatalf("expected error outcome, got %+v err=%v", outcome, err)
	}
}

func TestFreePath(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteContent(t, filepath.Join(dir, "a.pdf"), "x")
	testsupport.WriteContent(t, filepath.Join(dir, "a_1.pdf"), "x")
	got, err := organizer.FreePath(dir, "a.pdf")
	if err != nil {
		t.Fatalf("FreePath: %v", err)
	}
	if got != filepath.Join(dir, "a_2.pdf") {
		t.Fatalf("FreePath = %q", got)
	}
}
