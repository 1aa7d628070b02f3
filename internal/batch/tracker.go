// Package batch implements the batch extraction orchestrator: per-item state
// tracking and sequential, rate-limited dispatch against the extraction
// service.
package batch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/entity"
)

var (
	// ErrUnknownItem means the id does not belong to this batch.
	ErrUnknownItem = errors.New("unknown item")
	// ErrIllegalTransition means a forward-only state rule was violated.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrNotEditable means the item is not completed and has no data to edit.
	ErrNotEditable = errors.New("item is not completed")
)

// Tracker holds per-item lifecycle state and the aggregate batch statistics.
// Transitions are forward-only (pending → processing → completed|failed) and
// stats are updated atomically with every transition, so observers always see
// stats consistent with the sum of item states.
type Tracker struct {
	mu    sync.Mutex
	order []uuid.UUID
	items map[uuid.UUID]*entity.DocumentItem
	stats entity.BatchStats
}

// NewTracker builds a tracker over the intake items. Every item must still be
// pending; the input order is the dispatch order.
func NewTracker(items []*entity.DocumentItem) (*Tracker, error) {
	t := &Tracker{items: make(map[uuid.UUID]*entity.DocumentItem, len(items))}
	for _, it := range items {
		if it.Status != constants.ItemPending {
			return nil, fmt.Errorf("item %s: %w: batch intake requires pending items", it.ID, ErrIllegalTransition)
		}
		if _, dup := t.items[it.ID]; dup {
			return nil, fmt.Errorf("item %s: duplicate id in batch", it.ID)
		}
		t.items[it.ID] = it
		t.order = append(t.order, it.ID)
	}
	t.stats.Total = len(t.order)
	return t, nil
}

// Order returns the dispatch order of item ids.
func (t *Tracker) Order() []uuid.UUID {
	out := make([]uuid.UUID, len(t.order))
	copy(out, t.order)
	return out
}

// MarkProcessing moves a pending item into processing. It must be called
// strictly before the extraction request goes out.
func (t *Tracker) MarkProcessing(id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, err := t.item(id)
	if err != nil {
		return err
	}
	if it.Status != constants.ItemPending {
		return fmt.Errorf("item %s: %w: %s -> %s", id, ErrIllegalTransition, it.Status, constants.ItemProcessing)
	}
	it.Status = constants.ItemProcessing
	t.stats.Processing++
	return nil
}

// MarkCompleted moves a processing item into the completed terminal state and
// attaches the extraction outcome.
func (t *Tracker) MarkCompleted(id uuid.UUID, outcome entity.ExtractionOutcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, err := t.item(id)
	if err != nil {
		return err
	}
	if it.Status != constants.ItemProcessing {
		return fmt.Errorf("item %s: %w: %s -> %s", id, ErrIllegalTransition, it.Status, constants.ItemCompleted)
	}
	if outcome.Data == nil {
		outcome.Data = make(map[string]string)
	}
	it.Status = constants.ItemCompleted
	it.Outcome = &outcome
	t.stats.Processing--
	t.stats.Completed++
	return nil
}

// MarkFailed moves a processing item into the failed terminal state with a
// human-readable reason.
func (t *Tracker) MarkFailed(id uuid.UUID, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, err := t.item(id)
	if err != nil {
		return err
	}
	if it.Status != constants.ItemProcessing {
		return fmt.Errorf("item %s: %w: %s -> %s", id, ErrIllegalTransition, it.Status, constants.ItemFailed)
	}
	it.Status = constants.ItemFailed
	it.Error = reason
	t.stats.Processing--
	t.stats.Failed++
	return nil
}

// EditField replaces one extracted value on a completed item. Review edits
// never change the item's status.
func (t *Tracker) EditField(id uuid.UUID, fieldKey, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, err := t.item(id)
	if err != nil {
		return err
	}
	if it.Status != constants.ItemCompleted || it.Outcome == nil {
		return fmt.Errorf("item %s: %w", id, ErrNotEditable)
	}
	it.Outcome.Data[fieldKey] = value
	return nil
}

// SetValidation records the advisory validation message for one field of a
// completed item. An empty message clears the entry.
func (t *Tracker) SetValidation(id uuid.UUID, fieldKey, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, err := t.item(id)
	if err != nil {
		return err
	}
	if it.Status != constants.ItemCompleted || it.Outcome == nil {
		return fmt.Errorf("item %s: %w", id, ErrNotEditable)
	}
	if message == "" {
		delete(it.Outcome.ValidationErrors, fieldKey)
		return nil
	}
	if it.Outcome.ValidationErrors == nil {
		it.Outcome.ValidationErrors = make(map[string]string)
	}
	it.Outcome.ValidationErrors[fieldKey] = message
	return nil
}

// SetStoragePath records where the raw image was uploaded.
func (t *Tracker) SetStoragePath(id uuid.UUID, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, err := t.item(id)
	if err != nil {
		return err
	}
	it.Payload.StoragePath = path
	return nil
}

// Item returns a deep-copied snapshot of one item.
func (t *Tracker) Item(id uuid.UUID) (entity.DocumentItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, ok := t.items[id]
	if !ok {
		return entity.DocumentItem{}, false
	}
	return it.Clone(), true
}

// Items returns deep-copied snapshots in dispatch order.
func (t *Tracker) Items() []entity.DocumentItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]entity.DocumentItem, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.items[id].Clone())
	}
	return out
}

// Stats returns the current aggregate statistics.
func (t *Tracker) Stats() entity.BatchStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Resolved reports whether every item has reached a terminal state.
func (t *Tracker) Resolved() bool {
	return t.Stats().Resolved()
}

func (t *Tracker) item(id uuid.UUID) (*entity.DocumentItem, error) {
	it, ok := t.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, ErrUnknownItem)
	}
	return it, nil
}
