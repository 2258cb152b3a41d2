package resolution

import "fmt"

// Thresholds define the decision boundaries of the resolution rules
type Thresholds struct {
	ExtractionAutoApprove float64 // below this an invoice is at least flagged
	ExtractionEscalate    float64 // below this an invoice is escalated
	MatchAutoApprove      float64
	MatchEscalate         float64
	MaxDiscrepancies      int // this many discrepancies of any severity escalate
	ConfigVersion         string
}

// DefaultThresholds returns the standard resolution thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExtractionAutoApprove: 0.90,
		ExtractionEscalate:    0.70,
		MatchAutoApprove:      0.95,
		MatchEscalate:         0.50,
		MaxDiscrepancies:      3,
		ConfigVersion:         "v1",
	}
}

// Validate ensures threshold values are within valid ranges and logically consistent
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{
		"extraction_auto_approve": t.ExtractionAutoApprove,
		"extraction_escalate":     t.ExtractionEscalate,
		"match_auto_approve":      t.MatchAutoApprove,
		"match_escalate":          t.MatchEscalate,
	} {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%s must be between 0.0 and 1.0, got %.2f", name, v)
		}
	}

	if t.ExtractionAutoApprove <= t.ExtractionEscalate {
		return fmt.Errorf("extraction_auto_approve must be greater than extraction_escalate (%.2f <= %.2f)",
			t.ExtractionAutoApprove, t.ExtractionEscalate)
	}
	if t.MatchAutoApprove <= t.MatchEscalate {
		return fmt.Errorf("match_auto_approve must be greater than match_escalate (%.2f <= %.2f)",
			t.MatchAutoApprove, t.MatchEscalate)
	}
	if t.MaxDiscrepancies < 1 {
		return fmt.Errorf("max_discrepancies must be at least 1, got %d", t.MaxDiscrepancies)
	}

	return nil
}
