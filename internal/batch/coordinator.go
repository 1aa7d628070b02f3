package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/entity"
	"github.com/docuscan/docuscan/internal/extraction"
	"github.com/docuscan/docuscan/internal/template"
	"github.com/docuscan/docuscan/internal/validation"
)

// DefaultInterItemDelay spaces extraction calls to respect the remote
// service's rate limits. It is a throttle, not a correctness requirement.
const DefaultInterItemDelay = 500 * time.Millisecond

// Event is one observable state change of a batch item.
type Event struct {
	ItemID uuid.UUID
	From   constants.ItemStatus
	To     constants.ItemStatus
	Error  string
	Stats  entity.BatchStats
}

// RecordSink mirrors completed extractions into the document store so review
// can later save against them.
type RecordSink interface {
	InsertExtracted(ctx context.Context, rec entity.ScanRecord) error
}

// ObjectUploader stores raw images before dispatch and returns the object
// path. Optional; a nil uploader skips the step.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// CoordinatorConfig wires a coordinator.
type CoordinatorConfig struct {
	Tracker  *Tracker
	Service  extraction.Service
	Resolver *template.Resolver

	OrgID    string
	Operator string

	// InterItemDelay defaults to DefaultInterItemDelay; it is skipped after
	// the last item.
	InterItemDelay time.Duration

	Records RecordSink     // optional
	Objects ObjectUploader // optional
	Logger  *slog.Logger
}

// Coordinator drives sequential dispatch of one batch: strictly in input
// order, one request in flight, per-item failures isolated. It terminates
// only once every item is terminal, or when the context is cancelled between
// items. An in-flight call is never interrupted by the inter-item check.
type Coordinator struct {
	tracker  *Tracker
	service  extraction.Service
	resolver *template.Resolver
	records  RecordSink
	objects  ObjectUploader

	orgID    string
	operator string
	delay    time.Duration
	batchID  uuid.UUID
	logger   *slog.Logger

	// after is time.After, replaceable in tests.
	after func(time.Duration) <-chan time.Time

	events chan Event
}

// NewCoordinator builds a coordinator over an intake-complete tracker.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	delay := cfg.InterItemDelay
	if delay == 0 {
		delay = DefaultInterItemDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	total := cfg.Tracker.Stats().Total
	batchID := uuid.New()
	return &Coordinator{
		tracker:  cfg.Tracker,
		service:  cfg.Service,
		resolver: cfg.Resolver,
		records:  cfg.Records,
		objects:  cfg.Objects,
		orgID:    cfg.OrgID,
		operator: cfg.Operator,
		delay:    delay,
		batchID:  batchID,
		logger:   logger.With("batch_id", batchID),
		after:    time.After,
		// Sized so Run never blocks when nobody consumes events.
		events: make(chan Event, total*2+1),
	}
}

// Events exposes item state changes for observers (CLI, tests). The channel
// is closed when Run returns.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

// Run processes every item in order. A failure on one item never aborts or
// skips the rest. Context cancellation is honored only between items; the
// remaining items stay pending and the context error is returned.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.events)

	order := c.tracker.Order()
	c.logger.Info("batch.run.start",
		"items", len(order),
		"dispatch_key", c.resolver.DispatchKey(),
		"org_id", c.orgID,
	)
	start := time.Now()

	for i, id := range order {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("batch.run.cancelled", "remaining", len(order)-i)
			return err
		}

		c.processItem(ctx, id)

		if i < len(order)-1 && c.delay > 0 {
			select {
			case <-ctx.Done():
				c.logger.Warn("batch.run.cancelled", "remaining", len(order)-i-1)
				return ctx.Err()
			case <-c.after(c.delay):
			}
		}
	}

	stats := c.tracker.Stats()
	c.logger.Info("batch.run.resolved",
		"total", stats.Total,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (c *Coordinator) processItem(ctx context.Context, id uuid.UUID) {
	if err := c.tracker.MarkProcessing(id); err != nil {
		// Items are only ever advanced by this loop, so this indicates a
		// corrupted batch; skip rather than abort siblings.
		c.logger.Error("batch.item.transition_error", "item_id", id, "error", err)
		return
	}
	c.emit(id, constants.ItemPending, constants.ItemProcessing, "")

	item, _ := c.tracker.Item(id)
	c.uploadPayload(ctx, &item)

	res, err := c.service.Extract(ctx, extraction.Request{
		Image:       item.Payload.Data,
		Filename:    item.Payload.Filename,
		TemplateKey: c.resolver.DispatchKey(),
		OrgID:       c.orgID,
	})
	if err != nil {
		reason := err.Error()
		if markErr := c.tracker.MarkFailed(id, reason); markErr != nil {
			c.logger.Error("batch.item.transition_error", "item_id", id, "error", markErr)
			return
		}
		c.logger.Warn("batch.item.failed", "item_id", id, "filename", item.Payload.Filename, "reason", reason)
		c.emit(id, constants.ItemProcessing, constants.ItemFailed, reason)
		return
	}

	if c.resolver.AutoDetect() {
		c.resolver.Observe(res.DetectedType)
	}

	outcome := entity.ExtractionOutcome{
		Data:             res.ExtractedData,
		Confidence:       res.ConfidenceScore,
		ScanID:           res.ScanID,
		ValidationErrors: c.fieldValidation(res),
		DetectedType:     res.DetectedType,
	}
	if err := c.tracker.MarkCompleted(id, outcome); err != nil {
		c.logger.Error("batch.item.transition_error", "item_id", id, "error", err)
		return
	}
	c.logger.Info("batch.item.completed",
		"item_id", id,
		"filename", item.Payload.Filename,
		"scan_id", res.ScanID,
		"confidence", res.ConfidenceScore,
	)
	c.emit(id, constants.ItemProcessing, constants.ItemCompleted, "")

	c.mirrorRecord(ctx, id, outcome)
}

// uploadPayload pushes the raw image to object storage when configured. An
// upload failure degrades to a record without storage_path; it never fails
// the item.
func (c *Coordinator) uploadPayload(ctx context.Context, item *entity.DocumentItem) {
	if c.objects == nil || item.Payload.StoragePath != "" {
		return
	}
	key := fmt.Sprintf("%s/%s/%s", c.orgID, c.batchID, item.Payload.Filename)
	path, err := c.objects.Upload(ctx, key, item.Payload.Data, "application/octet-stream")
	if err != nil {
		c.logger.Warn("batch.item.upload_failed", "item_id", item.ID, "error", err)
		return
	}
	if err := c.tracker.SetStoragePath(item.ID, path); err == nil {
		item.Payload.StoragePath = path
	}
}

// mirrorRecord writes the freshly extracted snapshot into the local document
// store. The batch outcome does not depend on the mirror succeeding.
func (c *Coordinator) mirrorRecord(ctx context.Context, id uuid.UUID, outcome entity.ExtractionOutcome) {
	if c.records == nil {
		return
	}
	item, ok := c.tracker.Item(id)
	if !ok {
		return
	}
	now := time.Now().UTC()
	rec := entity.ScanRecord{
		ID:            outcome.ScanID,
		OrgID:         c.orgID,
		TemplateKey:   c.recordTemplateKey(outcome),
		StoragePath:   item.Payload.StoragePath,
		ExtractedData: item.Outcome.Data,
		Status:        constants.RecordExtracted,
		CreatedBy:     c.operator,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.records.InsertExtracted(ctx, rec); err != nil {
		c.logger.Warn("batch.item.mirror_failed", "item_id", id, "scan_id", outcome.ScanID, "error", err)
	}
}

// fieldValidation runs every schema field through the local rules once a
// template is bound, then lets service-provided messages win per field. An
// unresolved batch has no schema to check against and keeps the service
// messages as-is.
func (c *Coordinator) fieldValidation(res *extraction.Result) map[string]string {
	tpl, bound := c.resolver.Active()
	if !bound {
		return res.ValidationErrors
	}
	merged := validation.ValidateAll(tpl, res.ExtractedData)
	for k, msg := range res.ValidationErrors {
		merged[k] = msg
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

// recordTemplateKey picks the concrete key to persist: the bound template,
// else the service's detected type, never the auto-detect sentinel.
func (c *Coordinator) recordTemplateKey(outcome entity.ExtractionOutcome) string {
	if t, ok := c.resolver.Active(); ok {
		return t.Key
	}
	return outcome.DetectedType
}

func (c *Coordinator) emit(id uuid.UUID, from, to constants.ItemStatus, reason string) {
	ev := Event{ItemID: id, From: from, To: to, Error: reason, Stats: c.tracker.Stats()}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("batch.events.dropped", "item_id", id, "to", to)
	}
}
