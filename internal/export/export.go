// Package export renders extraction results as json, csv, xlsx or plain text.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/local/docextract/internal/extract"
)

// Format names accepted by the CLI -format flag.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatText = "text"
)

// Render serializes a result in the requested format. Tabular formats (csv,
// xlsx) require a structured result; free-text results only support json and
// text.
func Render(res *extract.Result, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return renderJSON(res)
	case FormatText:
		return []byte(res.Text), nil
	case FormatCSV:
		if res.JSON == nil {
			return nil, fmt.Errorf("csv output requires a schema or document type")
		}
		return renderCSV(res.JSON)
	case FormatXLSX:
		if res.JSON == nil {
			return nil, fmt.Errorf("xlsx output requires a schema or document type")
		}
		return renderXLSX(res.JSON)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func renderJSON(res *extract.Result) ([]byte, error) {
	if res.JSON != nil {
		return json.MarshalIndent(res.JSON, "", "  ")
	}
	return json.MarshalIndent(map[string]any{
		"text":       res.Text,
		"engine":     res.Engine,
		"page_count": res.PageCount,
	}, "", "  ")
}

// renderCSV writes one header row and one value row, fields in sorted order.
func renderCSV(fields map[string]any) ([]byte, error) {
	names := sortedKeys(fields)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(names); err != nil {
		return nil, err
	}
	row := make([]string, len(names))
	for i, name := range names {
		row[i] = cellString(fields[name])
	}
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderXLSX writes a single "Extraction" sheet with field/value pairs, one
// field per row.
func renderXLSX(fields map[string]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Extraction"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	_ = f.SetCellValue(sheet, "A1", "Field")
	_ = f.SetCellValue(sheet, "B1", "Value")

	row := 2
	for _, name := range sortedKeys(fields) {
		cellA, _ := excelize.CoordinatesToCellName(1, row)
		cellB, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(sheet, cellA, name)
		_ = f.SetCellValue(sheet, cellB, cellString(fields[name]))
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cellString flattens a JSON value for a table cell. Arrays and objects are
// re-encoded as compact JSON.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", t), "0"), ".")
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func sortedKeys(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
