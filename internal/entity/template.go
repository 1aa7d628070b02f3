package entity

import (
	"github.com/google/uuid"

	"github.com/docuscan/docuscan/constants"
)

// TemplateField describes one field of a document template schema.
type TemplateField struct {
	Key            string              `json:"key"`
	Label          string              `json:"label"`
	Type           constants.FieldType `json:"type"`
	Options        []string            `json:"options,omitempty"`
	ValidationRule string              `json:"validation_rule,omitempty"`
}

// Template describes one class of document the extraction service understands.
type Template struct {
	ID       uuid.UUID       `json:"id"`
	Key      string          `json:"key"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Fields   []TemplateField `json:"fields"`
}

// IsAutoDetect reports whether t is the auto-detect dispatch sentinel.
func (t *Template) IsAutoDetect() bool {
	return t.Key == constants.AutoDetectKey
}

// Field returns the schema entry for the given key.
func (t *Template) Field(key string) (TemplateField, bool) {
	for _, f := range t.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return TemplateField{}, false
}

// FieldKeys returns the template's field keys in schema order.
func (t *Template) FieldKeys() []string {
	keys := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		keys[i] = f.Key
	}
	return keys
}
