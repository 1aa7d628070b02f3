package entity

import (
	"time"

	"github.com/docuscan/docuscan/constants"
)

// ScanRecord mirrors the persisted record the extraction service creates on a
// successful extraction. The id is the service-issued scan id.
type ScanRecord struct {
	ID            string                 `json:"id"`
	OrgID         string                 `json:"org_id"`
	TemplateKey   string                 `json:"template_key"`
	StoragePath   string                 `json:"storage_path,omitempty"`
	ExtractedData map[string]string      `json:"extracted_data"`
	Status        constants.RecordStatus `json:"status"`
	CreatedBy     string                 `json:"created_by"`
	ReviewedBy    *string                `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time             `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}
