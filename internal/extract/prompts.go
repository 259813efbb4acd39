package extract

import (
	"fmt"
	"strings"
)

// Default prompts for the built-in document types. The schema-constrained
// prompt template demands JSON-only output with nulls for missing fields;
// fence stripping in clean.go tolerates models that wrap the JSON anyway.

const defaultFreePrompt = "Extract all text from this document. Preserve the reading order and structure."

const systemPrompt = "You are a document extraction assistant. You read scanned business documents and answer precisely, without inventing values that are not present in the document."

const classificationPrompt = `Classify this document. Respond ONLY with valid JSON matching this schema:
- document_type (string): one of invoice, contract, receipt, letter, report, form, other
- confidence (number): your confidence between 0 and 1

Use null for fields you cannot determine. Do not include any text outside the JSON object.`

// SchemaPrompt renders the schema-constrained extraction prompt.
func SchemaPrompt(s *Schema) string {
	var b strings.Builder
	b.WriteString("Extract the following fields from this document:\n\n")
	b.WriteString(s.PromptFragment())
	b.WriteString("\nRespond ONLY with valid JSON matching the field list above. ")
	b.WriteString("Use null for fields that are missing from the document. ")
	b.WriteString("Do not include any text outside the JSON object.")
	return b.String()
}

// TextDocumentPrompt wraps already-extracted document text for a text-only
// model request, instruction last.
func TextDocumentPrompt(docText, instruction string) string {
	return fmt.Sprintf("DOCUMENT TEXT:\n%s\n\n%s", docText, instruction)
}

// InvoiceSchema is the built-in schema for -type invoice.
func InvoiceSchema() *Schema {
	return &Schema{Fields: map[string]FieldDef{
		"invoice_number": {Type: "string", Description: "invoice identifier as printed"},
		"invoice_date":   {Type: "string", Description: "issue date, ISO 8601 if possible"},
		"due_date":       {Type: "string", Description: "payment due date"},
		"vendor_name":    {Type: "string", Description: "issuing company name"},
		"customer_name":  {Type: "string", Description: "billed party name"},
		"currency":       {Type: "string", Description: "ISO 4217 currency code"},
		"subtotal":       {Type: "number"},
		"tax_amount":     {Type: "number"},
		"total_amount":   {Type: "number", Description: "grand total including tax"},
		"line_items":     {Type: "array", Description: "one entry per line with description, quantity, unit_price, amount"},
	}}
}

// ContractSchema is the built-in schema for -type contract.
func ContractSchema() *Schema {
	return &Schema{Fields: map[string]FieldDef{
		"title":            {Type: "string", Description: "contract title or subject"},
		"parties":          {Type: "array", Description: "names of the contracting parties"},
		"effective_date":   {Type: "string"},
		"termination_date": {Type: "string"},
		"governing_law":    {Type: "string"},
		"payment_terms":    {Type: "string"},
		"auto_renewal":     {Type: "boolean"},
	}}
}

// ClassificationSchema matches the classification prompt output.
func ClassificationSchema() *Schema {
	return &Schema{Fields: map[string]FieldDef{
		"document_type": {Type: "string"},
		"confidence":    {Type: "number"},
	}}
}

// BuiltinSchema resolves a -type name to its schema.
func BuiltinSchema(docType string) (*Schema, error) {
	switch strings.ToLower(docType) {
	case "invoice":
		return InvoiceSchema(), nil
	case "contract":
		return ContractSchema(), nil
	default:
		return nil, fmt.Errorf("unknown document type %q (want invoice or contract)", docType)
	}
}
