package constants

// ItemStatus is the canonical lifecycle state for one document in a batch.
type ItemStatus string

// Stable values (these exact strings go over the wire and into logs).
const (
	ItemPending    ItemStatus = "pending"    // accepted into the batch, not dispatched
	ItemProcessing ItemStatus = "processing" // extraction call in flight
	ItemCompleted  ItemStatus = "completed"  // terminal success
	ItemFailed     ItemStatus = "failed"     // terminal failure
)

// Terminal reports whether s is one of the two end states.
func (s ItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemFailed
}

// RecordStatus is the status of a persisted scan record.
type RecordStatus string

const (
	RecordExtracted RecordStatus = "extracted" // created by the extraction call
	RecordReviewed  RecordStatus = "reviewed"  // operator saved a reviewed snapshot
	RecordConfirmed RecordStatus = "confirmed" // externally submitted document confirmed as-is
)
