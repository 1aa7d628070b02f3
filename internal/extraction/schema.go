package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// successEnvelopeSchema constrains a success=true response before we trust it.
// Requirements mirror the item invariants: a completed extraction always has
// data, a scan id, and a confidence score in [0,100].
func successEnvelopeSchema() map[string]any {
	stringMap := map[string]any{
		"type":                 "object",
		"additionalProperties": map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"success":           map[string]any{"type": "boolean"},
			"extracted_data":    stringMap,
			"confidence_score":  map[string]any{"type": "number", "minimum": 0.0, "maximum": 100.0},
			"scan_id":           map[string]any{"type": "string", "minLength": 1},
			"validation_errors": stringMap,
			"detected_type":     map[string]any{"type": "string"},
			"error":             map[string]any{"type": "string"},
		},
		"required": []string{"success", "extracted_data", "confidence_score", "scan_id"},
	}
}

// validateJSONAgainstSchema validates "data" against "schemaMap".
func validateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
