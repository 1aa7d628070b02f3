// Package validation implements the advisory per-field validation applied to
// extracted values during review. A non-empty message is a hint to the
// operator; it never blocks saving.
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/entity"
)

// Validate checks a single raw value against one field's schema and returns a
// human-readable message, or "" when the value is acceptable. Missing values
// are treated as empty strings; an empty value only fails the "required" rule.
func Validate(field entity.TemplateField, value string) string {
	value = strings.TrimSpace(value)

	if value == "" {
		if field.ValidationRule == "required" {
			return fmt.Sprintf("%s is required", field.Label)
		}
		return ""
	}

	switch field.Type {
	case constants.FieldNumber:
		if _, err := strconv.ParseFloat(normalizeNumber(value), 64); err != nil {
			return fmt.Sprintf("%s must be a number", field.Label)
		}
	case constants.FieldSelect:
		if len(field.Options) > 0 && !contains(field.Options, value) {
			return fmt.Sprintf("%s must be one of: %s", field.Label, strings.Join(field.Options, ", "))
		}
	}

	if field.ValidationRule != "" && field.ValidationRule != "required" {
		rule, ok := ruleFor(field.ValidationRule)
		if !ok {
			// Unknown rules are schema bugs, not data errors; stay silent.
			return ""
		}
		if msg := rule(value); msg != "" {
			return fmt.Sprintf("%s: %s", field.Label, msg)
		}
	}
	return ""
}

// ValidateAll runs Validate over every field of the template against the
// extracted data. Only fields with a non-empty message appear in the result.
func ValidateAll(tpl *entity.Template, data map[string]string) map[string]string {
	out := make(map[string]string)
	for _, f := range tpl.Fields {
		if msg := Validate(f, data[f.Key]); msg != "" {
			out[f.Key] = msg
		}
	}
	return out
}

// normalizeNumber accepts the comma decimal separator common on Romanian
// documents.
func normalizeNumber(s string) string {
	return strings.ReplaceAll(s, ",", ".")
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
