package discrepancy

import "fmt"

// Tolerances are the bands that separate noise from a reportable discrepancy.
// Ratios are fractions (0.02 = 2%); TotalPercent and TotalHighPercent are percents.
type Tolerances struct {
	LineItemThreshold float64
	PriceAutoApprove  float64
	PriceHighSeverity float64
	PriceEscalate     float64
	QuantityMedium    float64
	TotalAmount       float64
	TotalPercent      float64
	TotalHighPercent  float64
}

// DefaultTolerances returns the standard reconciliation rules
func DefaultTolerances() Tolerances {
	return Tolerances{
		LineItemThreshold: 0.70,
		PriceAutoApprove:  0.02,
		PriceHighSeverity: 0.05,
		PriceEscalate:     0.15,
		QuantityMedium:    0.10,
		TotalAmount:       5.0,
		TotalPercent:      1.0,
		TotalHighPercent:  10.0,
	}
}

// Validate ensures the bands are non-negative and nested
func (t Tolerances) Validate() error {
	if t.LineItemThreshold < 0 || t.LineItemThreshold > 1 {
		return fmt.Errorf("line_item_threshold must be between 0.0 and 1.0, got %.2f", t.LineItemThreshold)
	}
	if t.PriceAutoApprove < 0 || t.QuantityMedium < 0 || t.TotalAmount < 0 || t.TotalPercent < 0 {
		return fmt.Errorf("tolerances must be non-negative")
	}
	if !(t.PriceAutoApprove <= t.PriceHighSeverity && t.PriceHighSeverity <= t.PriceEscalate) {
		return fmt.Errorf("price bands must satisfy auto_approve <= high_severity <= escalate (%.2f, %.2f, %.2f)",
			t.PriceAutoApprove, t.PriceHighSeverity, t.PriceEscalate)
	}
	if t.TotalHighPercent < t.TotalPercent {
		return fmt.Errorf("total_high_percent must be >= total_percent (%.2f < %.2f)", t.TotalHighPercent, t.TotalPercent)
	}
	return nil
}
