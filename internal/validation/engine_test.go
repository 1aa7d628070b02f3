package validation

import (
	"strings"
	"testing"

	"github.com/docuscan/docuscan/constants"
	"github.com/docuscan/docuscan/internal/entity"
)

func TestValidate(t *testing.T) {
	t.Run("required", func(t *testing.T) {
		f := entity.TemplateField{Key: "numar_factura", Label: "Numar factura", Type: constants.FieldText, ValidationRule: "required"}
		if msg := Validate(f, ""); msg == "" {
			t.Error("empty required value passed")
		}
		if msg := Validate(f, "   "); msg == "" {
			t.Error("whitespace-only required value passed")
		}
		if msg := Validate(f, "F-100"); msg != "" {
			t.Errorf("unexpected message: %q", msg)
		}
	})

	t.Run("empty optional value always passes", func(t *testing.T) {
		f := entity.TemplateField{Key: "furnizor_cui", Label: "CUI", Type: constants.FieldText, ValidationRule: "cui"}
		if msg := Validate(f, ""); msg != "" {
			t.Errorf("empty optional value flagged: %q", msg)
		}
	})

	t.Run("number", func(t *testing.T) {
		f := entity.TemplateField{Key: "total", Label: "Total", Type: constants.FieldNumber}
		for _, ok := range []string{"120", "120.50", "120,50", "-3.2"} {
			if msg := Validate(f, ok); msg != "" {
				t.Errorf("Validate(%q) = %q, want ok", ok, msg)
			}
		}
		for _, bad := range []string{"abc", "12,34,56x", "1O0"} {
			if msg := Validate(f, bad); msg == "" {
				t.Errorf("Validate(%q) passed", bad)
			}
		}
	})

	t.Run("select", func(t *testing.T) {
		f := entity.TemplateField{
			Key: "moneda", Label: "Moneda", Type: constants.FieldSelect,
			Options: []string{"RON", "EUR"},
		}
		if msg := Validate(f, "RON"); msg != "" {
			t.Errorf("valid option flagged: %q", msg)
		}
		msg := Validate(f, "USD")
		if msg == "" {
			t.Fatal("invalid option passed")
		}
		if !strings.Contains(msg, "RON, EUR") {
			t.Errorf("message does not list options: %q", msg)
		}
	})

	t.Run("unknown rule stays silent", func(t *testing.T) {
		f := entity.TemplateField{Key: "x", Label: "X", Type: constants.FieldText, ValidationRule: "no_such_rule"}
		if msg := Validate(f, "anything"); msg != "" {
			t.Errorf("unknown rule produced %q", msg)
		}
	})

	t.Run("messages carry the field label", func(t *testing.T) {
		f := entity.TemplateField{Key: "furnizor_cui", Label: "CUI furnizor", Type: constants.FieldText, ValidationRule: "cui"}
		msg := Validate(f, "not-a-cui")
		if !strings.HasPrefix(msg, "CUI furnizor") {
			t.Errorf("message missing label: %q", msg)
		}
	})
}

func TestCUIRule(t *testing.T) {
	cases := []struct {
		value string
		ok    bool
	}{
		{"1234565", true},
		{"RO1234565", true},
		{"ro1234565", true},
		{"RO 1234565", true},
		{"1234566", false},
		{"19", true},
		{"abc", false},
		{"12345678901", false},
	}
	for _, tc := range cases {
		msg := validateCUI(tc.value)
		if tc.ok && msg != "" {
			t.Errorf("validateCUI(%q) = %q, want ok", tc.value, msg)
		}
		if !tc.ok && msg == "" {
			t.Errorf("validateCUI(%q) passed", tc.value)
		}
	}
}

func TestIBANRule(t *testing.T) {
	if msg := validateIBAN("RO49AAAA1B31007593840000"); msg != "" {
		t.Errorf("valid IBAN flagged: %q", msg)
	}
	if msg := validateIBAN("RO49 AAAA 1B31 0075 9384 0000"); msg != "" {
		t.Errorf("spaced IBAN flagged: %q", msg)
	}
	if msg := validateIBAN("RO49AAAA1B31007593840001"); msg == "" {
		t.Error("bad checksum passed")
	}
	if msg := validateIBAN("XX"); msg == "" {
		t.Error("short value passed")
	}
}

func TestDateRule(t *testing.T) {
	for _, ok := range []string{"2026-08-30", "30.08.2026"} {
		if msg := validateDate(ok); msg != "" {
			t.Errorf("validateDate(%q) = %q, want ok", ok, msg)
		}
	}
	for _, bad := range []string{"30/08/2026", "2026-13-01", "nu stiu"} {
		if msg := validateDate(bad); msg == "" {
			t.Errorf("validateDate(%q) passed", bad)
		}
	}
}

func TestRegisterRule(t *testing.T) {
	RegisterRule("always_no", func(string) string { return "computer says no" })
	f := entity.TemplateField{Key: "x", Label: "X", Type: constants.FieldText, ValidationRule: "always_no"}
	msg := Validate(f, "value")
	if !strings.Contains(msg, "computer says no") {
		t.Errorf("custom rule not applied: %q", msg)
	}
}

func TestValidateAll(t *testing.T) {
	tpl := &entity.Template{
		Key: "invoice_ro",
		Fields: []entity.TemplateField{
			{Key: "numar_factura", Label: "Numar factura", Type: constants.FieldText, ValidationRule: "required"},
			{Key: "furnizor_cui", Label: "CUI furnizor", Type: constants.FieldText, ValidationRule: "cui"},
			{Key: "total", Label: "Total", Type: constants.FieldNumber},
		},
	}
	data := map[string]string{
		"furnizor_cui": "1234566",
		"total":        "120,50",
	}

	out := ValidateAll(tpl, data)
	if len(out) != 2 {
		t.Fatalf("got %d messages, want 2: %v", len(out), out)
	}
	if out["numar_factura"] == "" {
		t.Error("missing required field not flagged")
	}
	if out["furnizor_cui"] == "" {
		t.Error("bad checksum not flagged")
	}
	if _, ok := out["total"]; ok {
		t.Error("valid number flagged")
	}
}
