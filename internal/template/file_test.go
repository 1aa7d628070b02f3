package template

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "templates.json")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("service envelope", func(t *testing.T) {
		path := write(t, `{"templates":[{"key":"invoice_ro","name":"Factura","category":"financiar"}]}`)
		templates, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if len(templates) != 1 || templates[0].Key != "invoice_ro" {
			t.Errorf("templates = %+v", templates)
		}
	})

	t.Run("bare array", func(t *testing.T) {
		path := write(t, `[{"key":"chitanta","name":"Chitanta","category":"financiar"}]`)
		templates, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if len(templates) != 1 || templates[0].Key != "chitanta" {
			t.Errorf("templates = %+v", templates)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		path := write(t, `not json`)
		if _, err := LoadFile(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
			t.Error("expected read error")
		}
	})
}
