package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldDef describes one field the model must extract.
type FieldDef struct {
	Type        string // string, number, integer, boolean, array, object
	Description string
}

// Schema is a flat field map the model output must conform to. Every field
// is nullable: the model returns null when a value is absent from the
// document.
type Schema struct {
	Fields map[string]FieldDef
}

var validFieldTypes = map[string]bool{
	"string": true, "number": true, "integer": true,
	"boolean": true, "array": true, "object": true,
}

// LoadSchemaFile reads a schema from a JSON file. Each entry is either
// "field": "type" or "field": {"type": ..., "description": ...}.
func LoadSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema parses the JSON schema definition.
func ParseSchema(data []byte) (*Schema, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}

	s := &Schema{Fields: make(map[string]FieldDef, len(raw))}
	for name, v := range raw {
		var typeOnly string
		if err := json.Unmarshal(v, &typeOnly); err == nil {
			if !validFieldTypes[typeOnly] {
				return nil, fmt.Errorf("field %q: unknown type %q", name, typeOnly)
			}
			s.Fields[name] = FieldDef{Type: typeOnly}
			continue
		}

		var def struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(v, &def); err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if !validFieldTypes[def.Type] {
			return nil, fmt.Errorf("field %q: unknown type %q", name, def.Type)
		}
		s.Fields[name] = FieldDef{Type: def.Type, Description: def.Description}
	}
	return s, nil
}

// FieldNames returns the field names in sorted order.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PromptFragment renders the field list for inclusion in the extraction
// prompt.
func (s *Schema) PromptFragment() string {
	var b strings.Builder
	for _, name := range s.FieldNames() {
		def := s.Fields[name]
		b.WriteString(fmt.Sprintf("- %s (%s)", name, def.Type))
		if def.Description != "" {
			b.WriteString(": " + def.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ToJSONSchema builds a draft JSON Schema document with nullable types and
// no extra properties allowed.
func (s *Schema) ToJSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	for name, def := range s.Fields {
		prop := map[string]any{"type": []string{def.Type, "null"}}
		if def.Description != "" {
			prop["description"] = def.Description
		}
		props[name] = prop
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

// Validate checks a decoded model response against the schema. Violations
// are returned as warnings, one per message line, so an imperfect response
// still reaches the caller.
func (s *Schema) Validate(data map[string]any) []string {
	b, err := json.Marshal(s.ToJSONSchema())
	if err != nil {
		return []string{fmt.Sprintf("marshal schema: %v", err)}
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return []string{fmt.Sprintf("add schema: %v", err)}
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return []string{fmt.Sprintf("compile schema: %v", err)}
	}
	if err := compiled.Validate(data); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// PruneUnknown removes keys the schema does not define and fills missing
// fields with explicit nulls, so output shape matches the schema exactly.
func (s *Schema) PruneUnknown(m map[string]any) map[string]any {
	out := make(map[string]any, len(s.Fields))
	for name := range s.Fields {
		if v, ok := m[name]; ok {
			out[name] = v
		} else {
			out[name] = nil
		}
	}
	for key := range m {
		if _, ok := s.Fields[key]; !ok {
			log.Debug().Str("field", key).Msg("dropped unknown field from model response")
		}
	}
	return out
}
