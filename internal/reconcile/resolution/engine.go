// Package resolution fuses extraction confidence, PO matching and discrepancies
// into a recommended action with an explanation.
package resolution

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

var actionRationale = map[entity.Action]string{
	entity.ActionAutoApprove:   "All criteria met for automatic approval. High confidence extraction, exact PO match, no discrepancies.",
	entity.ActionFlagForReview: "Minor issues detected requiring human verification before approval.",
	entity.ActionEscalate:      "Significant issues detected. Immediate human attention required before processing.",
}

// Input is everything the engine decides on. Matching is nil when matching
// was not attempted.
type Input struct {
	InvoiceNumber        string
	ExtractionConfidence float64
	DocumentQuality      string
	Matching             *entity.MatchingResult
	Discrepancies        []entity.Discrepancy
}

// Signals derives the rule inputs
func (in Input) Signals() Signals {
	s := Signals{
		TotalCount:           len(in.Discrepancies),
		ExtractionConfidence: in.ExtractionConfidence,
		MatchingAttempted:    in.Matching != nil,
	}
	for _, d := range in.Discrepancies {
		switch d.Severity {
		case entity.SeverityHigh:
			s.HighCount++
		case entity.SeverityMedium:
			s.MediumCount++
		}
	}
	if in.Matching != nil {
		s.POConfidence = in.Matching.POMatchConfidence
		s.Matched = in.Matching.Matched()
		s.Method = in.Matching.MatchMethod
	}
	return s
}

// Engine applies the decision table. It is pure and safe for concurrent use.
type Engine struct {
	thresholds Thresholds
	logger     *zap.Logger
}

// NewEngine creates a resolution engine
func NewEngine(thresholds Thresholds, logger *zap.Logger) *Engine {
	return &Engine{thresholds: thresholds, logger: logger}
}

// Resolve decides the action for in and explains it. The explanation is
// built after the decision and never feeds back into it.
func (e *Engine) Resolve(in Input) entity.ResolutionOutcome {
	signals := in.Signals()
	action, rule := Decide(signals, e.thresholds)
	factors := e.riskFactors(in, signals)

	e.logger.Debug("Resolution decided",
		zap.String("invoice_number", in.InvoiceNumber),
		zap.String("action", string(action)),
		zap.String("rule", rule),
		zap.String("thresholds_version", e.thresholds.ConfigVersion))

	return entity.ResolutionOutcome{
		RecommendedAction: action,
		RiskLevel:         riskFor(action),
		Reasoning:         strings.Join(e.explain(in, action, factors), "\n"),
		RiskFactors:       factors,
		Rule:              rule,
	}
}

func (e *Engine) riskFactors(in Input, s Signals) []string {
	factors := []string{}

	switch {
	case s.ExtractionConfidence >= e.thresholds.ExtractionAutoApprove:
	case s.ExtractionConfidence >= e.thresholds.ExtractionEscalate:
		factors = append(factors, fmt.Sprintf("Low extraction confidence (%.0f%%)", s.ExtractionConfidence*100))
	default:
		factors = append(factors, fmt.Sprintf("Very low extraction confidence (%.0f%%)", s.ExtractionConfidence*100))
	}

	if in.Matching != nil {
		switch {
		case !s.Matched:
			factors = append(factors, "No PO match found")
		case s.POConfidence >= e.thresholds.MatchAutoApprove:
		case s.POConfidence >= e.thresholds.MatchEscalate:
			factors = append(factors, fmt.Sprintf("PO match confidence only %.0f%%", s.POConfidence*100))
		default:
			factors = append(factors, fmt.Sprintf("Low PO match confidence (%.0f%%)", s.POConfidence*100))
		}
	}

	if s.HighCount > 0 {
		factors = append(factors, fmt.Sprintf("%d high-severity discrepancies", s.HighCount))
	}
	if s.MediumCount > 0 {
		factors = append(factors, fmt.Sprintf("%d medium-severity discrepancies", s.MediumCount))
	}
	return factors
}

func (e *Engine) explain(in Input, action entity.Action, factors []string) []string {
	number := in.InvoiceNumber
	if number == "" {
		number = "UNKNOWN"
	}
	quality := in.DocumentQuality
	if quality == "" {
		quality = entity.QualityUnknown
	}

	lines := []string{
		fmt.Sprintf("Invoice %s processed with %.0f%% extraction confidence.", number, in.ExtractionConfidence*100),
		fmt.Sprintf("Document quality assessed as '%s'.", quality),
		matchSummary(in.Matching),
	}

	if len(in.Discrepancies) == 0 {
		lines = append(lines, "No discrepancies found.")
	} else {
		title := cases.Title(language.English)
		lines = append(lines, fmt.Sprintf("Found %d discrepancies:", len(in.Discrepancies)))
		for _, d := range in.Discrepancies {
			name := title.String(strings.ReplaceAll(string(d.Type), "_", " "))
			lines = append(lines, fmt.Sprintf("  - %s: %s", name, d.Details))
		}
	}

	if len(factors) > 0 {
		lines = append(lines, "Risk factors: "+strings.Join(factors, "; ")+".")
	}

	lines = append(lines, fmt.Sprintf("RECOMMENDATION: %s. %s", strings.ToUpper(string(action)), actionRationale[action]))
	return lines
}

func matchSummary(m *entity.MatchingResult) string {
	switch {
	case m == nil:
		return "PO matching was not attempted."
	case !m.Matched():
		return "No matching purchase order found."
	default:
		return fmt.Sprintf("Matched to %s via %s (%.0f%% confidence); %d/%d line items matched.",
			*m.MatchedPO, strings.ReplaceAll(string(m.MatchMethod), "_", " "),
			m.POMatchConfidence*100, m.LineItemsMatched, m.LineItemsTotal)
	}
}
