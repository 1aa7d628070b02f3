// Package review implements the operator review flow over a resolved batch:
// local field edits with re-validation, the terminal save against the
// document store, and the independent external confirmation path.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/batch"
	"github.com/docuscan/docuscan/internal/common"
	"github.com/docuscan/docuscan/internal/entity"
	"github.com/docuscan/docuscan/internal/template"
	"github.com/docuscan/docuscan/internal/validation"
)

// ErrNotSavable signals the save precondition: only completed items carry a
// scan id. Callers treat it as a disabled action, not a failure to recover
// from; no store call is made.
var ErrNotSavable = fmt.Errorf("item has no persisted scan record: %w", common.ErrPrecondition)

// ScanStore is the document-store surface the adapter needs.
type ScanStore interface {
	// SaveReview idempotently overwrites the persisted snapshot with the
	// reviewed data.
	SaveReview(ctx context.Context, rec entity.ScanRecord) error
	// Confirm flips the status flag of an externally submitted document. It
	// must not touch extracted data.
	Confirm(ctx context.Context, scanID string) error
}

// Adapter applies review operations to a batch's items.
type Adapter struct {
	tracker  *batch.Tracker
	resolver *template.Resolver
	store    ScanStore
	orgID    string
	logger   *slog.Logger
}

// NewAdapter wires a review adapter for one batch.
func NewAdapter(tracker *batch.Tracker, resolver *template.Resolver, store ScanStore, orgID string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		tracker:  tracker,
		resolver: resolver,
		store:    store,
		orgID:    orgID,
		logger:   logger,
	}
}

// EditField changes one field's value in memory and re-validates exactly that
// field. Validation stays advisory: the edit always lands, whatever the
// message says. When the batch's template is unresolved there is no schema to
// check against and the value is stored as-is.
func (a *Adapter) EditField(itemID uuid.UUID, fieldKey, value string) error {
	if err := a.tracker.EditField(itemID, fieldKey, value); err != nil {
		return err
	}

	tpl, bound := a.resolver.Active()
	if !bound {
		return nil
	}
	field, ok := tpl.Field(fieldKey)
	if !ok {
		return nil
	}
	msg := validation.Validate(field, value)
	if err := a.tracker.SetValidation(itemID, fieldKey, msg); err != nil {
		return err
	}
	a.logger.Debug("review.edit", "item_id", itemID, "field", fieldKey, "validation", msg)
	return nil
}

// CanSave reports whether the save precondition holds for the item.
func (a *Adapter) CanSave(itemID uuid.UUID) bool {
	item, ok := a.tracker.Item(itemID)
	return ok && item.Status == constants.ItemCompleted && item.Outcome != nil && item.Outcome.ScanID != ""
}

// Save persists the current (possibly edited) data for one item, stamping the
// reviewer and timestamp. Re-invoking Save overwrites the prior snapshot.
func (a *Adapter) Save(ctx context.Context, itemID uuid.UUID, reviewerID string) error {
	item, ok := a.tracker.Item(itemID)
	if !ok {
		return fmt.Errorf("item %s: %w", itemID, batch.ErrUnknownItem)
	}
	if item.Status != constants.ItemCompleted || item.Outcome == nil || item.Outcome.ScanID == "" {
		return fmt.Errorf("item %s: %w", itemID, ErrNotSavable)
	}

	now := time.Now().UTC()
	rec := entity.ScanRecord{
		ID:            item.Outcome.ScanID,
		OrgID:         a.orgID,
		TemplateKey:   a.templateKey(item),
		StoragePath:   item.Payload.StoragePath,
		ExtractedData: item.Outcome.Data,
		Status:        constants.RecordReviewed,
		ReviewedBy:    &reviewerID,
		ReviewedAt:    &now,
		UpdatedAt:     now,
	}
	if err := a.store.SaveReview(ctx, rec); err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	a.logger.Info("review.saved",
		"item_id", itemID,
		"scan_id", rec.ID,
		"reviewer_id", reviewerID,
		"fields", len(rec.ExtractedData),
	)
	return nil
}

// ConfirmExternal flips the confirmation flag for a document that entered the
// system outside this batch flow. Extracted data is untouched.
func (a *Adapter) ConfirmExternal(ctx context.Context, scanID string) error {
	if err := a.store.Confirm(ctx, scanID); err != nil {
		return fmt.Errorf("confirm %s: %w", scanID, err)
	}
	a.logger.Info("review.confirmed", "scan_id", scanID)
	return nil
}

// FieldView is one row of the review rendering for an item.
type FieldView struct {
	Key   string
	Label string
	Value string
	Error string
}

// Fields renders an item for review. With a bound template the rows follow
// the schema order; unresolved batches degrade to the raw key/value pairs in
// sorted key order, without field-level validation.
func (a *Adapter) Fields(itemID uuid.UUID) ([]FieldView, error) {
	item, ok := a.tracker.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, batch.ErrUnknownItem)
	}
	if item.Outcome == nil {
		return nil, nil
	}

	if tpl, bound := a.resolver.Active(); bound {
		out := make([]FieldView, 0, len(tpl.Fields))
		for _, f := range tpl.Fields {
			out = append(out, FieldView{
				Key:   f.Key,
				Label: f.Label,
				Value: item.Outcome.Data[f.Key],
				Error: item.Outcome.ValidationErrors[f.Key],
			})
		}
		return out, nil
	}

	keys := make([]string, 0, len(item.Outcome.Data))
	for k := range item.Outcome.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]FieldView, 0, len(keys))
	for _, k := range keys {
		out = append(out, FieldView{Key: k, Label: k, Value: item.Outcome.Data[k]})
	}
	return out, nil
}

func (a *Adapter) templateKey(item entity.DocumentItem) string {
	if tpl, bound := a.resolver.Active(); bound {
		return tpl.Key
	}
	if item.Outcome != nil {
		return item.Outcome.DetectedType
	}
	return ""
}
