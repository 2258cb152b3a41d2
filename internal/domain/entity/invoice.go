package entity

import (
	"fmt"
	"strings"
)

// DefaultCurrency is assumed when a document or catalog record omits its currency
const DefaultCurrency = "GBP"

// LineItem is a single priced line on an invoice or purchase order.
// LineTotal is advisory and never re-derived from quantity and price.
type LineItem struct {
	ItemCode    *string `json:"item_code,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// ExtractedInvoice is the structured invoice produced by the extraction collaborator
type ExtractedInvoice struct {
	InvoiceNumber   string     `json:"invoice_number"`
	InvoiceDate     string     `json:"invoice_date"`
	SupplierName    string     `json:"supplier_name"`
	SupplierAddress *string    `json:"supplier_address,omitempty"`
	SupplierVAT     *string    `json:"supplier_vat,omitempty"`
	PaymentTerms    *string    `json:"payment_terms,omitempty"`
	POReference     *string    `json:"po_reference,omitempty"`
	LineItems       []LineItem `json:"line_items"`
	Subtotal        float64    `json:"subtotal"`
	VATRate         float64    `json:"vat_rate"`
	VATAmount       float64    `json:"vat_amount"`
	Total           float64    `json:"total"`
	Currency        string     `json:"currency"`
}

// HasPOReference reports whether the invoice carries a non-blank PO reference
func (inv *ExtractedInvoice) HasPOReference() bool {
	return inv != nil && inv.POReference != nil && strings.TrimSpace(*inv.POReference) != ""
}

// Descriptions returns the line item descriptions in invoice order
func (inv *ExtractedInvoice) Descriptions() []string {
	if inv == nil {
		return nil
	}
	descs := make([]string, len(inv.LineItems))
	for i, item := range inv.LineItems {
		descs[i] = item.Description
	}
	return descs
}

// CurrencyOrDefault returns the invoice currency, falling back to GBP
func (inv *ExtractedInvoice) CurrencyOrDefault() string {
	if inv == nil || strings.TrimSpace(inv.Currency) == "" {
		return DefaultCurrency
	}
	return strings.ToUpper(strings.TrimSpace(inv.Currency))
}

// Validate checks the numeric constraints of the data model
func (inv *ExtractedInvoice) Validate() error {
	if inv == nil {
		return fmt.Errorf("invoice is nil")
	}
	for i, item := range inv.LineItems {
		if item.Quantity < 0 {
			return fmt.Errorf("line item %d: quantity must be >= 0, got %v", i, item.Quantity)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("line item %d: unit_price must be >= 0, got %v", i, item.UnitPrice)
		}
	}
	return nil
}

// PurchaseOrder is the authoritative record of what was ordered
type PurchaseOrder struct {
	PONumber  string     `json:"po_number"`
	Supplier  string     `json:"supplier"`
	Date      string     `json:"date"`
	Total     float64    `json:"total"`
	Currency  string     `json:"currency"`
	LineItems []LineItem `json:"line_items"`
}

// Descriptions returns the PO line item descriptions in order
func (po *PurchaseOrder) Descriptions() []string {
	descs := make([]string, len(po.LineItems))
	for i, item := range po.LineItems {
		descs[i] = item.Description
	}
	return descs
}
