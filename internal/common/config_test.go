package common

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadConfig()
		if cfg.Extraction.Timeout != 45*time.Second {
			t.Errorf("extraction timeout = %v", cfg.Extraction.Timeout)
		}
		if cfg.Extraction.RetryAttempts != 1 {
			t.Errorf("retry attempts = %d, want 1", cfg.Extraction.RetryAttempts)
		}
		if cfg.Batch.InterItemDelay != 500*time.Millisecond {
			t.Errorf("inter-item delay = %v", cfg.Batch.InterItemDelay)
		}
		if cfg.Storage.Bucket != "docuscan-documents" {
			t.Errorf("bucket = %s", cfg.Storage.Bucket)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("EXTRACTION_BASE_URL", "https://extract.example.com")
		t.Setenv("EXTRACTION_RETRY_ATTEMPTS", "3")
		t.Setenv("BATCH_ITEM_DELAY", "100ms")
		t.Setenv("DB_MAX_CONNS", "7")

		cfg := LoadConfig()
		if cfg.Extraction.BaseURL != "https://extract.example.com" {
			t.Errorf("base url = %s", cfg.Extraction.BaseURL)
		}
		if cfg.Extraction.RetryAttempts != 3 {
			t.Errorf("retry attempts = %d", cfg.Extraction.RetryAttempts)
		}
		if cfg.Batch.InterItemDelay != 100*time.Millisecond {
			t.Errorf("inter-item delay = %v", cfg.Batch.InterItemDelay)
		}
		if cfg.Database.MaxConns != 7 {
			t.Errorf("max conns = %d", cfg.Database.MaxConns)
		}
	})

	t.Run("malformed values fall back to defaults", func(t *testing.T) {
		t.Setenv("EXTRACTION_RETRY_ATTEMPTS", "many")
		t.Setenv("BATCH_ITEM_DELAY", "soon")

		cfg := LoadConfig()
		if cfg.Extraction.RetryAttempts != 1 {
			t.Errorf("retry attempts = %d", cfg.Extraction.RetryAttempts)
		}
		if cfg.Batch.InterItemDelay != 500*time.Millisecond {
			t.Errorf("inter-item delay = %v", cfg.Batch.InterItemDelay)
		}
	})

	t.Run("non-positive retry attempts fall back to the default", func(t *testing.T) {
		for _, v := range []string{"-1", "0"} {
			t.Setenv("EXTRACTION_RETRY_ATTEMPTS", v)
			cfg := LoadConfig()
			if cfg.Extraction.RetryAttempts != 1 {
				t.Errorf("retry attempts for %q = %d, want 1", v, cfg.Extraction.RetryAttempts)
			}
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("base url required", func(t *testing.T) {
		cfg := LoadConfig()
		cfg.Extraction.BaseURL = ""
		err := cfg.Validate()
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("valid", func(t *testing.T) {
		cfg := LoadConfig()
		cfg.Extraction.BaseURL = "https://extract.example.com"
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}
