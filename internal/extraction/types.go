package extraction

import (
	"context"
	"fmt"

	"github.com/docuscan/docuscan/internal/entity"
)

// Request carries one document to the extraction service.
type Request struct {
	Image       []byte
	Filename    string
	TemplateKey string // concrete key or the auto-detect sentinel
	OrgID       string
}

// Result is the service's answer for one successfully extracted document.
type Result struct {
	ExtractedData    map[string]string
	ConfidenceScore  float64
	ScanID           string
	ValidationErrors map[string]string
	DetectedType     string
}

// FailureKind classifies why an extraction call failed. The batch coordinator
// treats all kinds identically; the kind is kept for operator-facing messages
// and for the retry policy, which only retries transport failures.
type FailureKind string

const (
	KindTransport FailureKind = "transport"
	KindService   FailureKind = "service_error"
	KindMalformed FailureKind = "malformed_response"
)

// Error is the typed failure returned by the client.
type Error struct {
	Kind    FailureKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Service is the narrow interface the batch coordinator depends on.
type Service interface {
	Extract(ctx context.Context, req Request) (*Result, error)
	ListTemplates(ctx context.Context) ([]entity.Template, error)
}
