package extract

import "encoding/json"

// Invoice is the typed form of an invoice extraction.
type Invoice struct {
	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   string     `json:"invoice_date"`
	DueDate       string     `json:"due_date"`
	VendorName    string     `json:"vendor_name"`
	CustomerName  string     `json:"customer_name"`
	Currency      string     `json:"currency"`
	Subtotal      *float64   `json:"subtotal"`
	TaxAmount     *float64   `json:"tax_amount"`
	TotalAmount   *float64   `json:"total_amount"`
	LineItems     []LineItem `json:"line_items"`
}

type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Amount      *float64 `json:"amount"`
}

// Contract is the typed form of a contract extraction.
type Contract struct {
	Title           string   `json:"title"`
	Parties         []string `json:"parties"`
	EffectiveDate   string   `json:"effective_date"`
	TerminationDate string   `json:"termination_date"`
	GoverningLaw    string   `json:"governing_law"`
	PaymentTerms    string   `json:"payment_terms"`
	AutoRenewal     *bool    `json:"auto_renewal"`
}

// Classification is the typed form of a classification result.
type Classification struct {
	DocumentType string   `json:"document_type"`
	Confidence   *float64 `json:"confidence"`
}

// decodeInto round-trips a pruned field map into a typed struct.
func decodeInto(m map[string]any, out any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
