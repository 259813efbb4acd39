package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSchemaShortForm(t *testing.T) {
	s, err := ParseSchema([]byte(`{"invoice_number": "string", "total": "number"}`))
	if err != nil {
		t.Fatalf("ParseSchema() error = %v", err)
	}
	if s.Fields["invoice_number"].Type != "string" {
		t.Fatalf("invoice_number type = %q", s.Fields["invoice_number"].Type)
	}
	if s.Fields["total"].Type != "number" {
		t.Fatalf("total type = %q", s.Fields["total"].Type)
	}
}

func TestParseSchemaLongForm(t *testing.T) {
	s, err := ParseSchema([]byte(`{"vendor": {"type": "string", "description": "issuing company"}}`))
	if err != nil {
		t.Fatalf("ParseSchema() error = %v", err)
	}
	def := s.Fields["vendor"]
	if def.Type != "string" || def.Description != "issuing company" {
		t.Fatalf("unexpected def: %+v", def)
	}
}

func TestParseSchemaRejectsUnknownType(t *testing.T) {
	if _, err := ParseSchema([]byte(`{"x": "decimal"}`)); err == nil {
		t.Fatal("expected error for unknown field type")
	}
	if _, err := ParseSchema([]byte(`{}`)); err == nil {
		t.Fatal("expected error for empty schema")
	}
}

func TestLoadSchemaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, []byte(`{"total": "number"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSchemaFile(path)
	if err != nil {
		t.Fatalf("LoadSchemaFile() error = %v", err)
	}
	if len(s.Fields) != 1 {
		t.Fatalf("fields = %d, want 1", len(s.Fields))
	}
}

func TestSchemaPromptMentionsEveryField(t *testing.T) {
	s := InvoiceSchema()
	prompt := SchemaPrompt(s)
	for _, name := range s.FieldNames() {
		if !strings.Contains(prompt, name) {
			t.Fatalf("prompt missing field %q", name)
		}
	}
	if !strings.Contains(prompt, "ONLY with valid JSON") {
		t.Fatal("prompt missing JSON-only instruction")
	}
	if !strings.Contains(prompt, "null") {
		t.Fatal("prompt missing null instruction")
	}
}

func TestToJSONSchemaNullableTypes(t *testing.T) {
	s := &Schema{Fields: map[string]FieldDef{"total": {Type: "number"}}}
	js := s.ToJSONSchema()

	props := js["properties"].(map[string]any)
	typ := props["total"].(map[string]any)["type"].([]string)
	if len(typ) != 2 || typ[0] != "number" || typ[1] != "null" {
		t.Fatalf("type = %v, want [number null]", typ)
	}
	if js["additionalProperties"] != false {
		t.Fatal("additionalProperties should be false")
	}
}

func TestValidateWarnsOnTypeMismatch(t *testing.T) {
	s := &Schema{Fields: map[string]FieldDef{"total": {Type: "number"}}}

	if warnings := s.Validate(map[string]any{"total": 12.5}); len(warnings) != 0 {
		t.Fatalf("unexpected warnings for valid data: %v", warnings)
	}
	if warnings := s.Validate(map[string]any{"total": nil}); len(warnings) != 0 {
		t.Fatalf("null should be allowed, got warnings: %v", warnings)
	}
	if warnings := s.Validate(map[string]any{"total": "a lot"}); len(warnings) == 0 {
		t.Fatal("expected a warning for string in number field")
	}
}

func TestPruneUnknown(t *testing.T) {
	s := &Schema{Fields: map[string]FieldDef{
		"total":  {Type: "number"},
		"vendor": {Type: "string"},
	}}

	out := s.PruneUnknown(map[string]any{
		"total":     10.0,
		"reasoning": "the model explains itself",
	})
	if _, ok := out["reasoning"]; ok {
		t.Fatal("unknown key should be pruned")
	}
	if out["total"] != 10.0 {
		t.Fatalf("total = %v, want 10", out["total"])
	}
	if v, ok := out["vendor"]; !ok || v != nil {
		t.Fatalf("missing field should be explicit null, got %v (present=%v)", v, ok)
	}
}
