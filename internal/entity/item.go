package entity

import (
	"github.com/google/uuid"

	"github.com/docuscan/docuscan/constants"
)

// Payload is the raw content of one photographed document.
type Payload struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`
	ContentHash []byte `json:"-"`
	StoragePath string `json:"storage_path,omitempty"`
}

// ExtractionOutcome holds the result data of a successful extraction call.
// It exists only on completed items, so a failed item can never carry a scan
// id or a confidence score.
type ExtractionOutcome struct {
	Data             map[string]string `json:"extracted_data"`
	Confidence       float64           `json:"confidence_score"`
	ScanID           string            `json:"scan_id"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
	DetectedType     string            `json:"detected_type,omitempty"`
}

// DocumentItem is one unit of work in a batch.
type DocumentItem struct {
	ID      uuid.UUID            `json:"id"`
	Payload Payload              `json:"payload"`
	Status  constants.ItemStatus `json:"status"`

	// Outcome is non-nil if and only if Status == ItemCompleted.
	Outcome *ExtractionOutcome `json:"outcome,omitempty"`
	// Error is non-empty if and only if Status == ItemFailed.
	Error string `json:"error,omitempty"`
}

// NewDocumentItem creates a pending item for the given payload.
func NewDocumentItem(payload Payload) *DocumentItem {
	return &DocumentItem{
		ID:      uuid.New(),
		Payload: payload,
		Status:  constants.ItemPending,
	}
}

// Clone returns a deep copy suitable for handing to observers.
func (d *DocumentItem) Clone() DocumentItem {
	cp := *d
	if d.Outcome != nil {
		oc := *d.Outcome
		oc.Data = copyStringMap(d.Outcome.Data)
		oc.ValidationErrors = copyStringMap(d.Outcome.ValidationErrors)
		cp.Outcome = &oc
	}
	return cp
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
