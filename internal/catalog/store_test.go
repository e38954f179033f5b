package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"coworker/internal/document"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult(docType, date, merchant string, amount float64, review bool) document.Result {
	r := document.Result{DocType: docType, DocDate: date, Merchant: merchant, TotalAmount: document.Float(amount), Currency: "USD", Confidence: 0.9, IsReviewNeeded: review}
	if review {
		r.ReviewReason = "Low Confidence"
	}
	return r
}

func TestUpsertAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	records := []Record{
		NewRecord("h1", "/in/a.jpg", "/org/a.jpg", "organized", "r1", sampleResult("Receipt", "2024-03-15", "Corner Cafe", 12.5, false)),
		NewRecord("h2", "/in/b.pdf", "/org/b.pdf", "organized", "r1", sampleResult("Invoice", "2024-04-01", "ACME", 100, false)),
		NewRecord("h3", "/in/c.png", "/rev/c.png", "organized", "r2", sampleResult("Receipt", "", "", 0, true)),
	}
	records[2].Amount = nil
	for _, rec := range records {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Hash != "h2" || all[2].Hash != "h3" {
		t.Fatalf("unexpected order %+v", all)
	}
	if all[2].Amount != nil || all[2].DocDate != "" {
		t.Fatalf("expected null fields preserved, got %+v", all[2])
	}

	receipts, err := store.List(ctx, Filter{DocType: "receipt"})
	if err != nil || len(receipts) != 2 {
		t.Fatalf("expected 2 receipts, got %d err=%v", len(receipts), err)
	}
	march, err := store.List(ctx, Filter{Month: "2024-03"})
	if err != nil || len(march) != 1 || march[0].Merchant != "Corner Cafe" {
		t.Fatalf("unexpected month filter %+v err=%v", march, err)
	}
	review := true
	flagged, err := store.List(ctx, Filter{Review: &review})
	if err != nil || len(flagged) != 1 || flagged[0].ReviewReason != "Low Confidence" {
		t.Fatalf("unexpected review filter %+v err=%v", flagged, err)
	}
	byMerchant, err := store.List(ctx, Filter{Merchant: "acm"})
	if err != nil || len(byMerchant) != 1 {
		t.Fatalf("unexpected merchant filter %+v err=%v", byMerchant, err)
	}
	limited, err := store.List(ctx, Filter{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("unexpected limit result %+v err=%v", limited, err)
	}
}

func TestUpsertReplacesByDestination(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	rec := NewRecord("h1", "/in/a.jpg", "/org/a.jpg", "organized", "r1", sampleResult("Receipt", "2024-03-15", "Cafe", 3, false))
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Merchant = "Better Cafe"
	rec.RunID = "r2"
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	all, err := store.List(ctx, Filter{})
	if err != nil || len(all) != 1 || all[0].Merchant != "Better Cafe" || all[0].RunID != "r2" {
		t.Fatalf("expected replaced row, got %+v err=%v", all, err)
	}
	if err := store.Upsert(ctx, Record{}); err == nil {
		t.Fatal("expected error for empty destination")
	}
}

func TestUpdateResultAndDeleteRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for _, rec := range []Record{
		NewRecord("h1", "/in/a.jpg", "/org/a.jpg", "organized", "r1", sampleResult("Other", "", "", 0, true)),
		NewRecord("h1", "/in/a2.jpg", "/org/Duplicates/a2.jpg", "duplicate", "r1", sampleResult("Other", "", "", 0, true)),
		NewRecord("h2", "/in/b.jpg", "/org/b.jpg", "organized", "r2", sampleResult("Receipt", "2024-01-01", "X", 1, false)),
	} {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	fixed := sampleResult("Invoice", "2024-02-02", "Fixed Co", 42, false)
	changed, err := store.UpdateResult(ctx, "h1", fixed)
	if err != nil || changed != 2 {
		t.Fatalf("UpdateResult changed %d err=%v", changed, err)
	}
	invoices, _ := store.List(ctx, Filter{DocType: "Invoice", Month: "2024-02"})
	if len(invoices) != 2 {
		t.Fatalf("expected fixed rows, got %+v", invoices)
	}

	counts, err := store.Count(ctx)
	if err != nil || counts.Documents != 3 || counts.ByType["Invoice"] != 2 || counts.Review != 0 {
		t.Fatalf("unexpected counts %+v err=%v", counts, err)
	}

	removed, err := store.DeleteRun(ctx, "r1")
	if err != nil || removed != 2 {
		t.Fatalf("DeleteRun removed %d err=%v", removed, err)
	}
	rest, _ := store.List(ctx, Filter{})
	if len(rest) != 1 || rest[0].RunID != "r2" {
		t.Fatalf("unexpected remaining rows %+v", rest)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(context.Background(), NewRecord("h", "/s", "/d", "organized", "r", sampleResult("Receipt", "2024-01-01", "M", 1, false))); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	rows, err := reopened.List(context.Background(), Filter{})
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected persisted row, got %d err=%v", len(rows), err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()
	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
