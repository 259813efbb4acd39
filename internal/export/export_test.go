package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/local/docextract/internal/extract"
)

func structuredResult() *extract.Result {
	return &extract.Result{
		Text:   `{"vendor_name": "ACME", "total_amount": 99.5}`,
		Engine: extract.EngineVision,
		JSON: map[string]any{
			"vendor_name":  "ACME",
			"total_amount": 99.5,
			"due_date":     nil,
			"line_items":   []any{map[string]any{"description": "widget"}},
		},
		PageCount: 1,
	}
}

func TestRenderJSONStructured(t *testing.T) {
	out, err := Render(structuredResult(), FormatJSON)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if m["vendor_name"] != "ACME" {
		t.Fatalf("vendor_name = %v", m["vendor_name"])
	}
}

func TestRenderJSONFreeText(t *testing.T) {
	res := &extract.Result{Text: "full text here", Engine: extract.EngineText, PageCount: 3}
	out, err := Render(res, "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if m["text"] != "full text here" {
		t.Fatalf("text = %v", m["text"])
	}
	if m["page_count"] != 3.0 {
		t.Fatalf("page_count = %v", m["page_count"])
	}
}

func TestRenderText(t *testing.T) {
	res := &extract.Result{Text: "plain output"}
	out, err := Render(res, FormatText)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if string(out) != "plain output" {
		t.Fatalf("out = %q", out)
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := Render(structuredResult(), FormatCSV)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("output is not CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + values", len(rows))
	}
	// Sorted header order
	want := []string{"due_date", "line_items", "total_amount", "vendor_name"}
	for i, h := range want {
		if rows[0][i] != h {
			t.Fatalf("header = %v, want %v", rows[0], want)
		}
	}
	if rows[1][3] != "ACME" {
		t.Fatalf("vendor cell = %q", rows[1][3])
	}
	if rows[1][0] != "" {
		t.Fatalf("null cell should be empty, got %q", rows[1][0])
	}
	if !strings.Contains(rows[1][1], "widget") {
		t.Fatalf("array cell should be compact JSON, got %q", rows[1][1])
	}
}

func TestRenderCSVRequiresStructured(t *testing.T) {
	res := &extract.Result{Text: "free text only"}
	if _, err := Render(res, FormatCSV); err == nil {
		t.Fatal("expected error for csv without structured fields")
	}
}

func TestRenderXLSX(t *testing.T) {
	out, err := Render(structuredResult(), FormatXLSX)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Extraction")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want header + 4 fields", len(rows))
	}
	if rows[0][0] != "Field" || rows[0][1] != "Value" {
		t.Fatalf("header = %v", rows[0])
	}
	found := false
	for _, row := range rows[1:] {
		if row[0] == "vendor_name" && len(row) > 1 && row[1] == "ACME" {
			found = true
		}
	}
	if !found {
		t.Fatal("vendor_name row missing from workbook")
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	if _, err := Render(structuredResult(), "yaml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
