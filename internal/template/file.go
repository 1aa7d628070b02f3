package template

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/docuscan/docuscan/internal/entity"
)

// LoadFile reads a template listing from a local JSON file, for working
// against a known catalogue without hitting the service. Accepts either the
// service's {"templates": [...]} envelope or a bare array.
func LoadFile(path string) ([]entity.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}

	var envelope struct {
		Templates []entity.Template `json:"templates"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Templates) > 0 {
		return envelope.Templates, nil
	}

	var list []entity.Template
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse template file %s: %w", path, err)
	}
	return list, nil
}
