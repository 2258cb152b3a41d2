package resolution

import "github.com/garyjia/invoice-reconciliation/internal/domain/entity"

// Signals are the facts the rules are evaluated against
type Signals struct {
	HighCount            int
	MediumCount          int
	TotalCount           int
	ExtractionConfidence float64
	POConfidence         float64
	MatchingAttempted    bool
	Matched              bool
	Method               entity.MatchMethod
}

// Rule is one row of the decision table
type Rule struct {
	Name    string
	Action  entity.Action
	Applies func(s Signals, t Thresholds) bool
}

// rules is evaluated top-down and the first applicable row decides.
// Escalation rows precede flag rows; auto-approve is the fallthrough.
var rules = []Rule{
	{"high_severity_discrepancy", entity.ActionEscalate, func(s Signals, _ Thresholds) bool {
		return s.HighCount > 0
	}},
	{"too_many_discrepancies", entity.ActionEscalate, func(s Signals, t Thresholds) bool {
		return s.TotalCount >= t.MaxDiscrepancies
	}},
	{"extraction_confidence_too_low", entity.ActionEscalate, func(s Signals, t Thresholds) bool {
		return s.ExtractionConfidence < t.ExtractionEscalate
	}},
	{"po_match_confidence_too_low", entity.ActionEscalate, func(s Signals, t Thresholds) bool {
		return s.MatchingAttempted && s.Matched && s.POConfidence < t.MatchEscalate
	}},
	{"no_po_match", entity.ActionEscalate, func(s Signals, _ Thresholds) bool {
		return s.MatchingAttempted && !s.Matched
	}},
	{"medium_severity_discrepancy", entity.ActionFlagForReview, func(s Signals, _ Thresholds) bool {
		return s.MediumCount > 0
	}},
	{"extraction_below_auto_approve", entity.ActionFlagForReview, func(s Signals, t Thresholds) bool {
		return s.ExtractionConfidence < t.ExtractionAutoApprove
	}},
	{"po_match_below_auto_approve", entity.ActionFlagForReview, func(s Signals, t Thresholds) bool {
		return s.MatchingAttempted && s.POConfidence >= t.MatchEscalate && s.POConfidence < t.MatchAutoApprove
	}},
	{"non_exact_match_method", entity.ActionFlagForReview, func(s Signals, _ Thresholds) bool {
		return s.MatchingAttempted && s.Method != entity.MatchMethodExactReference
	}},
	{"any_discrepancy", entity.ActionFlagForReview, func(s Signals, _ Thresholds) bool {
		return s.TotalCount > 0
	}},
}

// RuleAutoApprove names the fallthrough when no rule applies
const RuleAutoApprove = "all_criteria_met"

// Rules returns a copy of the decision table in evaluation order
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Decide returns the first applicable rule's action, or auto-approve
func Decide(s Signals, t Thresholds) (entity.Action, string) {
	for _, r := range rules {
		if r.Applies(s, t) {
			return r.Action, r.Name
		}
	}
	return entity.ActionAutoApprove, RuleAutoApprove
}

func riskFor(a entity.Action) entity.RiskLevel {
	switch a {
	case entity.ActionEscalate:
		return entity.RiskHigh
	case entity.ActionFlagForReview:
		return entity.RiskMedium
	default:
		return entity.RiskLow
	}
}
