// Package discrepancy compares an invoice with its matched purchase order and
// reports every difference that falls outside tolerance.
package discrepancy

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/similarity"
)

// Report is the ordered discrepancy list plus a summary line
type Report struct {
	Discrepancies []entity.Discrepancy
	Reasoning     string
}

// Count returns the number of discrepancies at severity s
func (r Report) Count(s entity.Severity) int {
	n := 0
	for _, d := range r.Discrepancies {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// Detector is pure: the same invoice and PO always produce the same report
type Detector struct {
	tol    Tolerances
	logger *zap.Logger
}

// NewDetector creates a detector with the given tolerances
func NewDetector(tol Tolerances, logger *zap.Logger) *Detector {
	return &Detector{tol: tol, logger: logger}
}

// Detect compares inv against po. po is nil when matching found nothing.
func (d *Detector) Detect(inv *entity.ExtractedInvoice, po *entity.PurchaseOrder) Report {
	if inv == nil {
		return Report{Discrepancies: []entity.Discrepancy{}, Reasoning: "No extracted data available; nothing to compare."}
	}

	out := []entity.Discrepancy{}
	currency := inv.CurrencyOrDefault()

	if !inv.HasPOReference() {
		out = append(out, d.missingReference(po))
	}

	if po == nil {
		return Report{
			Discrepancies: out,
			Reasoning:     summarize(out) + " No PO matched; line item and total checks skipped.",
		}
	}

	poDescs := po.Descriptions()
	for i, item := range inv.LineItems {
		j, _, ok := similarity.BestMatch(item.Description, poDescs, d.tol.LineItemThreshold)
		if !ok {
			out = append(out, entity.Discrepancy{
				Type:              entity.DiscrepancyExtraItem,
				Severity:          entity.SeverityMedium,
				LineItemIndex:     ptr(i),
				Field:             ptr("description"),
				Details:           fmt.Sprintf("Line item %q not found on %s.", item.Description, po.PONumber),
				RecommendedAction: entity.ActionFlagForReview,
				Confidence:        0.85,
			})
			continue
		}

		poItem := po.LineItems[j]
		if disc, ok := d.price(i, item, poItem, currency); ok {
			out = append(out, disc)
		}
		if disc, ok := d.quantity(i, item, poItem); ok {
			out = append(out, disc)
		}
	}

	if disc, ok := d.total(inv, po, currency); ok {
		out = append(out, disc)
	}

	if len(out) > 0 {
		d.logger.Debug("Discrepancies detected",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.String("po_number", po.PONumber),
			zap.Int("count", len(out)))
	}

	return Report{Discrepancies: out, Reasoning: summarize(out)}
}

func (d *Detector) missingReference(po *entity.PurchaseOrder) entity.Discrepancy {
	if po != nil {
		return entity.Discrepancy{
			Type:              entity.DiscrepancyMissingPOReference,
			Severity:          entity.SeverityMedium,
			Field:             ptr("po_reference"),
			Details:           fmt.Sprintf("Invoice does not quote a PO number; matched to %s by fuzzy matching.", po.PONumber),
			RecommendedAction: entity.ActionFlagForReview,
			Confidence:        0.95,
		}
	}
	return entity.Discrepancy{
		Type:              entity.DiscrepancyMissingPOReference,
		Severity:          entity.SeverityHigh,
		Field:             ptr("po_reference"),
		Details:           "Invoice does not quote a PO number and no matching PO was found.",
		RecommendedAction: entity.ActionEscalate,
		Confidence:        0.95,
	}
}

func (d *Detector) price(i int, item, poItem entity.LineItem, currency string) (entity.Discrepancy, bool) {
	if poItem.UnitPrice <= 0 {
		return entity.Discrepancy{}, false
	}

	pv := (item.UnitPrice - poItem.UnitPrice) / poItem.UnitPrice
	abs := math.Abs(pv)
	if abs <= d.tol.PriceAutoApprove {
		return entity.Discrepancy{}, false
	}

	severity, action := entity.SeverityMedium, entity.ActionFlagForReview
	switch {
	case abs > d.tol.PriceEscalate:
		severity, action = entity.SeverityHigh, entity.ActionEscalate
	case abs > d.tol.PriceHighSeverity:
		severity = entity.SeverityHigh
	}

	return entity.Discrepancy{
		Type:               entity.DiscrepancyPriceMismatch,
		Severity:           severity,
		LineItemIndex:      ptr(i),
		Field:              ptr("unit_price"),
		InvoiceValue:       ptr(item.UnitPrice),
		POValue:            ptr(poItem.UnitPrice),
		VariancePercentage: ptr(Round2(pv * 100)),
		Details: fmt.Sprintf("Unit price for %q is %s vs PO %s (%.2f%% %s).",
			item.Description, Money(currency, item.UnitPrice), Money(currency, poItem.UnitPrice), abs*100, direction(pv)),
		RecommendedAction: action,
		Confidence:        0.99,
	}, true
}

func (d *Detector) quantity(i int, item, poItem entity.LineItem) (entity.Discrepancy, bool) {
	if poItem.Quantity <= 0 || math.Abs(item.Quantity-poItem.Quantity) < 1e-9 {
		return entity.Discrepancy{}, false
	}

	qv := (item.Quantity - poItem.Quantity) / poItem.Quantity
	severity := entity.SeverityMedium
	if math.Abs(qv) > d.tol.QuantityMedium {
		severity = entity.SeverityHigh
	}

	unit := item.Unit
	if unit == "" {
		unit = poItem.Unit
	}

	return entity.Discrepancy{
		Type:               entity.DiscrepancyQuantityMismatch,
		Severity:           severity,
		LineItemIndex:      ptr(i),
		Field:              ptr("quantity"),
		InvoiceValue:       ptr(item.Quantity),
		POValue:            ptr(poItem.Quantity),
		VariancePercentage: ptr(Round2(qv * 100)),
		Details: fmt.Sprintf("Quantity for %q is %s vs PO %s (%.2f%% %s).",
			item.Description, formatQty(item.Quantity, unit), formatQty(poItem.Quantity, poItem.Unit), math.Abs(qv)*100, direction(qv)),
		RecommendedAction: entity.ActionFlagForReview,
		Confidence:        0.98,
	}, true
}

func (d *Detector) total(inv *entity.ExtractedInvoice, po *entity.PurchaseOrder, currency string) (entity.Discrepancy, bool) {
	tv := d.TotalVariance(inv, po)
	if tv.WithinTolerance || po.Total <= 0 {
		return entity.Discrepancy{}, false
	}

	pct := math.Abs(inv.Total-po.Total) / po.Total * 100
	severity, action := entity.SeverityMedium, entity.ActionFlagForReview
	if pct > d.tol.TotalHighPercent {
		severity, action = entity.SeverityHigh, entity.ActionEscalate
	}

	return entity.Discrepancy{
		Type:               entity.DiscrepancyTotalVariance,
		Severity:           severity,
		Field:              ptr("total"),
		InvoiceValue:       ptr(inv.Total),
		POValue:            ptr(po.Total),
		VariancePercentage: ptr(Round2(pct)),
		Details: fmt.Sprintf("Invoice total %s vs PO total %s (variance %s, %.2f%%).",
			Money(currency, inv.Total), Money(currency, po.Total), Money(currency, tv.Amount), Round2(pct)),
		RecommendedAction: action,
		Confidence:        0.99,
	}, true
}

// TotalVariance compares the invoice total with the PO total. Without a PO
// or with a zero PO total the variance is zero and within tolerance.
func (d *Detector) TotalVariance(inv *entity.ExtractedInvoice, po *entity.PurchaseOrder) entity.TotalVariance {
	if inv == nil || po == nil || po.Total <= 0 {
		return entity.TotalVariance{WithinTolerance: true}
	}

	amount := inv.Total - po.Total
	pct := amount / po.Total * 100
	return entity.TotalVariance{
		Amount:          Round2(amount),
		Percentage:      Round2(pct),
		WithinTolerance: math.Abs(amount) <= d.tol.TotalAmount || math.Abs(pct) <= d.tol.TotalPercent,
	}
}

func summarize(ds []entity.Discrepancy) string {
	if len(ds) == 0 {
		return "No discrepancies detected. All line items match PO prices and quantities within tolerance."
	}

	counts := map[entity.Severity]int{}
	for _, d := range ds {
		counts[d.Severity]++
	}
	var parts []string
	for _, s := range []entity.Severity{entity.SeverityHigh, entity.SeverityMedium, entity.SeverityLow} {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	return fmt.Sprintf("Detected %d discrepancies (%s).", len(ds), strings.Join(parts, ", "))
}
