package entity

import "time"

// AlternativeMatch summarises a candidate PO offered to a human reviewer
type AlternativeMatch struct {
	PONumber     string  `json:"po_number"`
	Supplier     string  `json:"supplier"`
	Confidence   float64 `json:"confidence"`
	MatchedItems int     `json:"matched_items"`
}

// MatchingResult is the outcome of PO matching for one invoice.
// MatchedPO is non-nil iff MatchMethod is not no_match.
type MatchingResult struct {
	POMatchConfidence  float64            `json:"po_match_confidence"`
	MatchedPO          *string            `json:"matched_po"`
	MatchMethod        MatchMethod        `json:"match_method"`
	SupplierMatch      bool               `json:"supplier_match"`
	LineItemsMatched   int                `json:"line_items_matched"`
	LineItemsTotal     int                `json:"line_items_total"`
	MatchRate          float64            `json:"match_rate"`
	AlternativeMatches []AlternativeMatch `json:"alternative_matches"`
}

// Matched reports whether a PO was found
func (m *MatchingResult) Matched() bool {
	return m != nil && m.MatchedPO != nil && m.MatchMethod.Matched()
}

// Discrepancy is a single difference between an invoice and its PO
type Discrepancy struct {
	Type               DiscrepancyType `json:"type"`
	Severity           Severity        `json:"severity"`
	LineItemIndex      *int            `json:"line_item_index,omitempty"`
	Field              *string         `json:"field,omitempty"`
	InvoiceValue       *float64        `json:"invoice_value,omitempty"`
	POValue            *float64        `json:"po_value,omitempty"`
	VariancePercentage *float64        `json:"variance_percentage,omitempty"`
	Details            string          `json:"details"`
	RecommendedAction  Action          `json:"recommended_action"`
	Confidence         float64         `json:"confidence"`
}

// TotalVariance compares invoice and PO totals
type TotalVariance struct {
	Amount          float64 `json:"amount"`
	Percentage      float64 `json:"percentage"`
	WithinTolerance bool    `json:"within_tolerance"`
}

// ResolutionOutcome is the final recommendation for an invoice
type ResolutionOutcome struct {
	RecommendedAction Action    `json:"recommended_action"`
	RiskLevel         RiskLevel `json:"risk_level"`
	Reasoning         string    `json:"reasoning"`
	RiskFactors       []string  `json:"risk_factors"`
	Rule              string    `json:"rule"`
}

// Correction is a field fix suggested by the review collaborator
type Correction struct {
	Field          string `json:"field"`
	CurrentValue   string `json:"current_value"`
	SuggestedValue string `json:"suggested_value"`
	Reason         string `json:"reason"`
}

// ReviewRequest is what the review collaborator is shown
type ReviewRequest struct {
	Invoice           *ExtractedInvoice `json:"invoice"`
	MatchedPO         *PurchaseOrder    `json:"matched_po,omitempty"`
	Discrepancies     []Discrepancy     `json:"discrepancies"`
	RecommendedAction Action            `json:"recommended_action"`
}

// ReviewResult is the review collaborator's answer
type ReviewResult struct {
	ApprovalStatus string       `json:"approval_status"`
	Corrections    []Correction `json:"corrections"`
	Feedback       string       `json:"feedback"`
	Confidence     float64      `json:"confidence"`
}

// NeedsReprocessing is true only when corrections were requested and supplied
func (r *ReviewResult) NeedsReprocessing() bool {
	return r != nil && r.ApprovalStatus == ReviewNeedsCorrection && len(r.Corrections) > 0
}

// StageTrace records how one pipeline stage went
type StageTrace struct {
	DurationMS int64   `json:"duration_ms"`
	Confidence float64 `json:"confidence"`
	Status     string  `json:"status"`
	Reasoning  string  `json:"reasoning"`
}

// DocumentInfo describes the source document of a run
type DocumentInfo struct {
	Filename        string  `json:"filename"`
	FileSizeKB      float64 `json:"file_size_kb"`
	DocumentQuality string  `json:"document_quality"`
}

// ReconciliationResult is the record produced for every processed invoice
type ReconciliationResult struct {
	RunID                     string                `json:"run_id"`
	InvoiceID                 string                `json:"invoice_id"`
	ProcessingTimestamp       time.Time             `json:"processing_timestamp"`
	ProcessingDurationSeconds float64               `json:"processing_duration_seconds"`
	DocumentInfo              DocumentInfo          `json:"document_info"`
	ExtractionConfidence      float64               `json:"extraction_confidence"`
	DocumentQuality           string                `json:"document_quality"`
	ExtractedData             *ExtractedInvoice     `json:"extracted_data"`
	MatchingResults           *MatchingResult       `json:"matching_results"`
	Discrepancies             []Discrepancy         `json:"discrepancies"`
	TotalVariance             TotalVariance         `json:"total_variance"`
	RecommendedAction         Action                `json:"recommended_action"`
	RiskLevel                 RiskLevel             `json:"risk_level"`
	OverallConfidence         float64               `json:"confidence"`
	AgentReasoning            string                `json:"agent_reasoning"`
	Resolution                *ResolutionOutcome    `json:"resolution,omitempty"`
	StageTraces               map[string]StageTrace `json:"agent_execution_trace"`
	Review                    *ReviewResult         `json:"review,omitempty"`
	HumanReviewFeedback       *string               `json:"human_review_feedback"`
	NeedsReprocessing         bool                  `json:"needs_reprocessing"`
	States                    []string              `json:"states"`
	Error                     string                `json:"error,omitempty"`
}

// Failed reports whether the run ended in the errored state
func (r *ReconciliationResult) Failed() bool {
	return r.Error != ""
}
