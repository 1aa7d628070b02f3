package review

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/batch"
	"github.com/docuscan/docuscan/internal/common"
	"github.com/docuscan/docuscan/internal/entity"
	"github.com/docuscan/docuscan/internal/template"
)

type fakeStore struct {
	mu        sync.Mutex
	saved     []entity.ScanRecord
	confirmed []string
	err       error
}

func (f *fakeStore) SaveReview(ctx context.Context, rec entity.ScanRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeStore) Confirm(ctx context.Context, scanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.confirmed = append(f.confirmed, scanID)
	return nil
}

func invoiceTemplate() entity.Template {
	return entity.Template{
		Key:      "invoice_ro",
		Name:     "Factura",
		Category: "financiar",
		Fields: []entity.TemplateField{
			{Key: "numar_factura", Label: "Numar factura", Type: constants.FieldText, ValidationRule: "required"},
			{Key: "furnizor_cui", Label: "CUI furnizor", Type: constants.FieldText, ValidationRule: "cui"},
			{Key: "total", Label: "Total", Type: constants.FieldNumber},
		},
	}
}

// testBatch builds one completed and one failed item under an invoice binding.
func testBatch(t *testing.T, templateKey string) (*batch.Tracker, *template.Resolver, []*entity.DocumentItem) {
	t.Helper()
	items := []*entity.DocumentItem{
		entity.NewDocumentItem(entity.Payload{Filename: "a.jpg", Data: []byte("a")}),
		entity.NewDocumentItem(entity.Payload{Filename: "b.jpg", Data: []byte("b")}),
	}
	tracker, err := batch.NewTracker(items)
	if err != nil {
		t.Fatal(err)
	}
	reg := template.NewRegistry([]entity.Template{invoiceTemplate()}, nil)
	resolver, err := template.NewResolver(reg, templateKey, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := tracker.MarkProcessing(items[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := tracker.MarkCompleted(items[0].ID, entity.ExtractionOutcome{
		Data: map[string]string{
			"numar_factura": "F-100",
			"furnizor_cui":  "1234565",
			"total":         "120,50",
		},
		Confidence:   91.0,
		ScanID:       "scan-1",
		DetectedType: "invoice_ro",
	}); err != nil {
		t.Fatal(err)
	}
	if err := tracker.MarkProcessing(items[1].ID); err != nil {
		t.Fatal(err)
	}
	if err := tracker.MarkFailed(items[1].ID, "transport: connection refused"); err != nil {
		t.Fatal(err)
	}
	return tracker, resolver, items
}

func TestAdapterEditField(t *testing.T) {
	t.Run("edit lands and re-validates only that field", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, "invoice_ro")
		store := &fakeStore{}
		a := NewAdapter(tracker, resolver, store, "org-1", nil)
		id := items[0].ID

		if err := a.EditField(id, "furnizor_cui", "1234566"); err != nil {
			t.Fatalf("EditField() error = %v", err)
		}
		it, _ := tracker.Item(id)
		if it.Outcome.Data["furnizor_cui"] != "1234566" {
			t.Error("edit not applied")
		}
		if it.Outcome.ValidationErrors["furnizor_cui"] == "" {
			t.Error("bad checksum not flagged after edit")
		}
		if _, flagged := it.Outcome.ValidationErrors["total"]; flagged {
			t.Error("untouched field was re-validated")
		}

		// Correcting the value clears the message.
		if err := a.EditField(id, "furnizor_cui", "1234565"); err != nil {
			t.Fatalf("EditField() error = %v", err)
		}
		it, _ = tracker.Item(id)
		if msg, flagged := it.Outcome.ValidationErrors["furnizor_cui"]; flagged {
			t.Errorf("message not cleared: %q", msg)
		}
	})

	t.Run("advisory only, the edit always lands", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, "invoice_ro")
		a := NewAdapter(tracker, resolver, &fakeStore{}, "org-1", nil)
		id := items[0].ID

		if err := a.EditField(id, "total", "not a number"); err != nil {
			t.Fatalf("EditField() error = %v", err)
		}
		it, _ := tracker.Item(id)
		if it.Outcome.Data["total"] != "not a number" {
			t.Error("invalid value rejected; validation must stay advisory")
		}
	})

	t.Run("unbound batch stores values without validation", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, constants.AutoDetectKey)
		a := NewAdapter(tracker, resolver, &fakeStore{}, "org-1", nil)
		id := items[0].ID

		if err := a.EditField(id, "furnizor_cui", "garbage"); err != nil {
			t.Fatalf("EditField() error = %v", err)
		}
		it, _ := tracker.Item(id)
		if len(it.Outcome.ValidationErrors) != 0 {
			t.Errorf("validation ran without a bound template: %v", it.Outcome.ValidationErrors)
		}
	})

	t.Run("failed item is not editable", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, "invoice_ro")
		a := NewAdapter(tracker, resolver, &fakeStore{}, "org-1", nil)

		if err := a.EditField(items[1].ID, "total", "1"); !errors.Is(err, batch.ErrNotEditable) {
			t.Errorf("expected ErrNotEditable, got %v", err)
		}
	})
}

func TestAdapterSave(t *testing.T) {
	t.Run("saves reviewed snapshot", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, "invoice_ro")
		store := &fakeStore{}
		a := NewAdapter(tracker, resolver, store, "org-1", nil)
		id := items[0].ID

		if !a.CanSave(id) {
			t.Fatal("completed item should be savable")
		}
		if err := a.Save(context.Background(), id, "reviewer-7"); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if len(store.saved) != 1 {
			t.Fatalf("saved %d records, want 1", len(store.saved))
		}
		rec := store.saved[0]
		if rec.ID != "scan-1" {
			t.Errorf("record id = %s", rec.ID)
		}
		if rec.Status != constants.RecordReviewed {
			t.Errorf("status = %s", rec.Status)
		}
		if rec.ReviewedBy == nil || *rec.ReviewedBy != "reviewer-7" || rec.ReviewedAt == nil {
			t.Error("reviewer stamp missing")
		}
		if rec.TemplateKey != "invoice_ro" {
			t.Errorf("template key = %s", rec.TemplateKey)
		}
	})

	t.Run("save is repeatable and carries the latest edits", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, "invoice_ro")
		store := &fakeStore{}
		a := NewAdapter(tracker, resolver, store, "org-1", nil)
		id := items[0].ID

		if err := a.Save(context.Background(), id, "reviewer-7"); err != nil {
			t.Fatal(err)
		}
		if err := a.EditField(id, "total", "999"); err != nil {
			t.Fatal(err)
		}
		if err := a.Save(context.Background(), id, "reviewer-7"); err != nil {
			t.Fatal(err)
		}
		if len(store.saved) != 2 {
			t.Fatalf("saved %d records, want 2", len(store.saved))
		}
		if store.saved[1].ExtractedData["total"] != "999" {
			t.Error("second save missing the edit")
		}
	})

	t.Run("failed item refuses to save without touching the store", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, "invoice_ro")
		store := &fakeStore{}
		a := NewAdapter(tracker, resolver, store, "org-1", nil)
		id := items[1].ID

		if a.CanSave(id) {
			t.Error("failed item reported savable")
		}
		err := a.Save(context.Background(), id, "reviewer-7")
		if !errors.Is(err, ErrNotSavable) {
			t.Fatalf("expected ErrNotSavable, got %v", err)
		}
		if !errors.Is(err, common.ErrPrecondition) {
			t.Errorf("save refusal does not identify as a precondition: %v", err)
		}
		if len(store.saved) != 0 {
			t.Error("store was called despite the failed precondition")
		}
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, "invoice_ro")
		store := &fakeStore{err: errors.New("db down")}
		a := NewAdapter(tracker, resolver, store, "org-1", nil)

		if err := a.Save(context.Background(), items[0].ID, "reviewer-7"); err == nil {
			t.Error("expected error from failing store")
		}
	})
}

func TestAdapterConfirmExternal(t *testing.T) {
	tracker, resolver, _ := testBatch(t, "invoice_ro")
	store := &fakeStore{}
	a := NewAdapter(tracker, resolver, store, "org-1", nil)

	if err := a.ConfirmExternal(context.Background(), "ext-scan-9"); err != nil {
		t.Fatalf("ConfirmExternal() error = %v", err)
	}
	if len(store.confirmed) != 1 || store.confirmed[0] != "ext-scan-9" {
		t.Errorf("confirmed = %v", store.confirmed)
	}
	if len(store.saved) != 0 {
		t.Error("confirmation must not write extracted data")
	}
}

func TestAdapterFields(t *testing.T) {
	t.Run("bound batch renders in schema order", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, "invoice_ro")
		a := NewAdapter(tracker, resolver, &fakeStore{}, "org-1", nil)

		fields, err := a.Fields(items[0].ID)
		if err != nil {
			t.Fatalf("Fields() error = %v", err)
		}
		want := []string{"numar_factura", "furnizor_cui", "total"}
		if len(fields) != len(want) {
			t.Fatalf("got %d rows, want %d", len(fields), len(want))
		}
		for i, f := range fields {
			if f.Key != want[i] {
				t.Errorf("row %d = %s, want %s", i, f.Key, want[i])
			}
		}
		if fields[0].Label != "Numar factura" || fields[0].Value != "F-100" {
			t.Errorf("row 0 = %+v", fields[0])
		}
	})

	t.Run("unbound batch renders sorted raw pairs", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, constants.AutoDetectKey)
		a := NewAdapter(tracker, resolver, &fakeStore{}, "org-1", nil)

		fields, err := a.Fields(items[0].ID)
		if err != nil {
			t.Fatalf("Fields() error = %v", err)
		}
		want := []string{"furnizor_cui", "numar_factura", "total"}
		for i, f := range fields {
			if f.Key != want[i] {
				t.Errorf("row %d = %s, want %s", i, f.Key, want[i])
			}
			if f.Error != "" {
				t.Errorf("unbound rendering carries validation: %+v", f)
			}
		}
	})

	t.Run("failed item renders nothing", func(t *testing.T) {
		tracker, resolver, items := testBatch(t, "invoice_ro")
		a := NewAdapter(tracker, resolver, &fakeStore{}, "org-1", nil)

		fields, err := a.Fields(items[1].ID)
		if err != nil {
			t.Fatalf("Fields() error = %v", err)
		}
		if len(fields) != 0 {
			t.Errorf("failed item rendered %d rows", len(fields))
		}
	})
}
