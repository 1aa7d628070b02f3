package constants

import "strings"

// AutoDetectKey is the sentinel template key that asks the extraction service
// to classify the document and pick the schema itself. It is a dispatch mode,
// never a valid binding for a persisted record.
const AutoDetectKey = "auto_detect"

// FieldType enumerates the field kinds a template schema may declare.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldSelect FieldType = "select"
)

// AllowedExtensions holds the default allowed file extensions for batch intake.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
