package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/garyjia/invoice-reconciliation/internal/application/port"
	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

// Fallbacks applied when the extraction payload leaves a field out
const (
	UnknownInvoiceNumber = "UNKNOWN"
	UnknownSupplier      = "Unknown Supplier"
	UnknownDescription   = "Unknown"
	DefaultUnit          = "kg"
	DefaultVATRate       = 0.20
)

// confidence model for field presence
const (
	trackedFields      = 12
	baseConfidence     = 0.70
	presenceWeight     = 0.25
	criticalBonus      = 0.05
	maxFieldConfidence = 0.98
)

// rawInvoice is the JSON shape the vision model is asked to return.
// Pointers distinguish a missing field from a zero value.
type rawInvoice struct {
	InvoiceNumber   *string         `json:"invoice_number"`
	InvoiceDate     *string         `json:"invoice_date"`
	SupplierName    *string         `json:"supplier_name"`
	SupplierAddress *string         `json:"supplier_address"`
	SupplierVAT     *string         `json:"supplier_vat"`
	POReference     *string         `json:"po_reference"`
	PaymentTerms    *string         `json:"payment_terms"`
	BillTo          json.RawMessage `json:"bill_to"`
	LineItems       []rawLineItem   `json:"line_items"`
	Subtotal        *float64        `json:"subtotal"`
	VATRate         *float64        `json:"vat_rate"`
	VATAmount       *float64        `json:"vat_amount"`
	Total           *float64        `json:"total"`
	Currency        *string         `json:"currency"`
}

type rawLineItem struct {
	ItemCode    *string  `json:"item_code"`
	Description *string  `json:"description"`
	Quantity    *float64 `json:"quantity"`
	Unit        *string  `json:"unit"`
	UnitPrice   *float64 `json:"unit_price"`
	LineTotal   *float64 `json:"line_total"`
}

// Decode parses a model response into an extraction result. The confidence
// is derived from which fields are present, so the same payload always
// yields the same confidence and quality label.
func Decode(content string) (*port.ExtractionResult, error) {
	var raw rawInvoice
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	inv := raw.toEntity()
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	confidence := FieldConfidence(raw.presentCount(), raw.criticalPresent())

	return &port.ExtractionResult{
		Invoice:         inv,
		Confidence:      confidence,
		DocumentQuality: AssessQuality(confidence, raw.missingCritical()),
		Reasoning:       raw.reasoning(),
	}, nil
}

// FieldConfidence scores an extraction from the number of tracked fields present
func FieldConfidence(present int, criticalPresent bool) float64 {
	confidence := baseConfidence + float64(present)/trackedFields*presenceWeight
	if criticalPresent {
		confidence = math.Min(confidence+criticalBonus, maxFieldConfidence)
	}
	return confidence
}

// AssessQuality labels a document from its extraction confidence and how
// many of invoice number, supplier, line items and total are missing
func AssessQuality(confidence float64, missingCritical int) string {
	switch {
	case missingCritical == 0 && confidence >= 0.90:
		return entity.QualityExcellent
	case missingCritical <= 1 && confidence >= 0.75:
		return entity.QualityGood
	case missingCritical <= 2 && confidence >= 0.60:
		return entity.QualityAcceptable
	default:
		return entity.QualityPoor
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func hasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func hasObject(m json.RawMessage) bool {
	trimmed := bytes.TrimSpace(m)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func (r *rawInvoice) presentCount() int {
	present := 0
	for _, ok := range []bool{
		hasText(r.InvoiceNumber),
		hasText(r.InvoiceDate),
		hasText(r.SupplierName),
		hasText(r.POReference),
		len(r.LineItems) > 0,
		r.Subtotal != nil,
		r.VATAmount != nil,
		r.Total != nil,
		hasText(r.Currency),
		hasText(r.PaymentTerms),
		hasText(r.SupplierAddress),
		hasObject(r.BillTo),
	} {
		if ok {
			present++
		}
	}
	return present
}

func (r *rawInvoice) critical() []bool {
	return []bool{
		hasText(r.InvoiceNumber),
		hasText(r.SupplierName),
		len(r.LineItems) > 0,
		r.Total != nil && *r.Total != 0,
	}
}

func (r *rawInvoice) criticalPresent() bool {
	return r.missingCritical() == 0
}

func (r *rawInvoice) missingCritical() int {
	missing := 0
	for _, ok := range r.critical() {
		if !ok {
			missing++
		}
	}
	return missing
}

func (r *rawInvoice) reasoning() string {
	c := r.critical()
	return fmt.Sprintf("Successfully extracted invoice data. Found %d line items. "+
		"Critical fields present: invoice_number=%t, supplier=%t, PO_ref=%t, total=%t.",
		len(r.LineItems), c[0], c[1], hasText(r.POReference), c[3])
}

func (r *rawInvoice) toEntity() *entity.ExtractedInvoice {
	inv := &entity.ExtractedInvoice{
		InvoiceNumber:   textOr(r.InvoiceNumber, UnknownInvoiceNumber),
		InvoiceDate:     textOr(r.InvoiceDate, ""),
		SupplierName:    textOr(r.SupplierName, UnknownSupplier),
		SupplierAddress: optionalText(r.SupplierAddress),
		SupplierVAT:     optionalText(r.SupplierVAT),
		PaymentTerms:    optionalText(r.PaymentTerms),
		POReference:     optionalText(r.POReference),
		LineItems:       make([]entity.LineItem, 0, len(r.LineItems)),
		Subtotal:        numberOr(r.Subtotal, 0),
		VATRate:         numberOr(r.VATRate, DefaultVATRate),
		VATAmount:       numberOr(r.VATAmount, 0),
		Total:           numberOr(r.Total, 0),
		Currency:        strings.ToUpper(textOr(r.Currency, entity.DefaultCurrency)),
	}

	for _, item := range r.LineItems {
		inv.LineItems = append(inv.LineItems, entity.LineItem{
			ItemCode:    optionalText(item.ItemCode),
			Description: textOr(item.Description, UnknownDescription),
			Quantity:    numberOr(item.Quantity, 0),
			Unit:        textOr(item.Unit, DefaultUnit),
			UnitPrice:   numberOr(item.UnitPrice, 0),
			LineTotal:   numberOr(item.LineTotal, 0),
		})
	}
	return inv
}

func textOr(s *string, fallback string) string {
	if !hasText(s) {
		return fallback
	}
	return strings.TrimSpace(*s)
}

func optionalText(s *string) *string {
	if !hasText(s) {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func numberOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
