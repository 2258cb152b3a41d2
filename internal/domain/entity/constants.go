package entity

// MatchMethod identifies which matcher tier produced a MatchingResult
type MatchMethod string

const (
	MatchMethodExactReference  MatchMethod = "exact_po_reference"
	MatchMethodSupplierProduct MatchMethod = "fuzzy_supplier_product_match"
	MatchMethodProductOnly     MatchMethod = "product_only_match"
	MatchMethodNone            MatchMethod = "no_match"
)

// Severity of a discrepancy
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DiscrepancyType classifies a detected discrepancy
type DiscrepancyType string

const (
	DiscrepancyPriceMismatch      DiscrepancyType = "price_mismatch"
	DiscrepancyQuantityMismatch   DiscrepancyType = "quantity_mismatch"
	DiscrepancyMissingPOReference DiscrepancyType = "missing_po_reference"
	DiscrepancyTotalVariance      DiscrepancyType = "total_variance"
	DiscrepancyExtraItem          DiscrepancyType = "extra_item"
	DiscrepancyMissingItem        DiscrepancyType = "missing_item"
	DiscrepancySupplierMismatch   DiscrepancyType = "supplier_mismatch"
)

// Action is the recommended disposition of an invoice
type Action string

const (
	ActionAutoApprove   Action = "auto_approve"
	ActionFlagForReview Action = "flag_for_review"
	ActionEscalate      Action = "escalate_to_human"
)

// RiskLevel mirrors the resolution branch taken
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Review approval statuses returned by the review collaborator
const (
	ReviewApproved        = "approved"
	ReviewNeedsCorrection = "needs_correction"
	ReviewRejected        = "rejected"
)

// Document quality labels
const (
	QualityExcellent  = "excellent"
	QualityGood       = "good"
	QualityAcceptable = "acceptable"
	QualityPoor       = "poor"
	QualityUnknown    = "unknown"
)

var validActions = map[Action]bool{
	ActionAutoApprove:   true,
	ActionFlagForReview: true,
	ActionEscalate:      true,
}

// IsValid returns true if the action is one of the known dispositions
func (a Action) IsValid() bool {
	return validActions[a]
}

// NeedsHuman returns true for actions that require a person to look at the invoice
func (a Action) NeedsHuman() bool {
	return a == ActionFlagForReview || a == ActionEscalate
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// String returns the string representation of the severity
func (s Severity) String() string {
	return string(s)
}

// String returns the string representation of the match method
func (m MatchMethod) String() string {
	return string(m)
}

// Matched returns true for every method except no_match
func (m MatchMethod) Matched() bool {
	return m != "" && m != MatchMethodNone
}
