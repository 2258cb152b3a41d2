package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/garyjia/invoice-reconciliation/internal/application/service"
	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(18)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	actionStyles = map[entity.Action]lipgloss.Style{
		entity.ActionAutoApprove:   lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		entity.ActionFlagForReview: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB300")).Bold(true),
		entity.ActionEscalate:      lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}
)

func actionLabel(a entity.Action) string {
	if style, ok := actionStyles[a]; ok {
		return style.Render(string(a))
	}
	return string(a)
}

func countLabel(a entity.Action, counts map[entity.Action]int) string {
	n := fmt.Sprintf("%d", counts[a])
	if style, ok := actionStyles[a]; ok {
		return style.Render(n)
	}
	return n
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

// renderResult formats one reconciliation result for the terminal
func renderResult(r *entity.ReconciliationResult) string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Invoice %s", r.InvoiceID)),
		row("Document", r.DocumentInfo.Filename),
		row("Action", actionLabel(r.RecommendedAction)),
		row("Risk", string(r.RiskLevel)),
		row("Confidence", fmt.Sprintf("%.2f", r.OverallConfidence)),
	}

	if r.Failed() {
		lines = append(lines, row("Error", r.Error))
	} else if m := r.MatchingResults; m != nil {
		po := "none"
		if m.MatchedPO != nil {
			po = fmt.Sprintf("%s (%s, %.2f)", *m.MatchedPO, m.MatchMethod, m.POMatchConfidence)
		}
		lines = append(lines, row("Matched PO", po))
	}

	if len(r.Discrepancies) > 0 {
		lines = append(lines, "", titleStyle.Render("Discrepancies"))
		for _, d := range r.Discrepancies {
			lines = append(lines, fmt.Sprintf("  [%s] %s", d.Severity, d.Details))
		}
	}
	if r.HumanReviewFeedback != nil {
		lines = append(lines, "", row("Review", *r.HumanReviewFeedback))
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}

// renderBatch formats the totals of a batch run
func renderBatch(s *service.BatchSummary, elapsed time.Duration) string {
	lines := []string{
		titleStyle.Render("Reconciliation summary"),
		row("Documents", fmt.Sprintf("%d", len(s.Results))),
		row("Auto approve", countLabel(entity.ActionAutoApprove, s.ByAction)),
		row("Flag for review", countLabel(entity.ActionFlagForReview, s.ByAction)),
		row("Escalate", countLabel(entity.ActionEscalate, s.ByAction)),
		row("Failed", fmt.Sprintf("%d", s.Failed)),
		row("Elapsed", elapsed.Round(time.Millisecond).String()),
	}
	if s.ReportPath != "" {
		lines = append(lines, row("Report", s.ReportPath))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
