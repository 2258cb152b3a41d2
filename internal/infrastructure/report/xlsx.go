// Package report writes batch reconciliation results to a spreadsheet.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

// Sheet names
const (
	SheetSummary       = "Summary"
	SheetDiscrepancies = "Discrepancies"
)

var summaryHeader = []interface{}{
	"File", "Invoice", "Matched PO", "Match Method", "PO Confidence",
	"Discrepancies", "Action", "Risk", "Confidence", "Needs Reprocessing", "Error",
}

var discrepancyHeader = []interface{}{
	"File", "Invoice", "Type", "Severity", "Line", "Variance %", "Details", "Action",
}

var actionColors = map[entity.Action]string{
	entity.ActionAutoApprove:   "C6EFCE",
	entity.ActionFlagForReview: "FFEB9C",
	entity.ActionEscalate:      "FFC7CE",
}

// XLSXWriter writes the batch report workbook
type XLSXWriter struct {
	logger *zap.Logger
}

// NewXLSXWriter creates a report writer
func NewXLSXWriter(logger *zap.Logger) *XLSXWriter {
	return &XLSXWriter{logger: logger}
}

// Write saves results to path as a workbook with a Summary and a Discrepancies sheet
func (w *XLSXWriter) Write(path string, results []*entity.ReconciliationResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetDiscrepancies); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	styles, err := actionStyles(f)
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(SheetSummary, "A1", &summaryHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetSheetRow(SheetDiscrepancies, "A1", &discrepancyHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	discRow := 2
	for i, res := range results {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := summaryRow(res)
		if err := f.SetSheetRow(SheetSummary, cell, &values); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", row, err)
		}

		if style, ok := styles[res.RecommendedAction]; ok {
			actionCell := fmt.Sprintf("G%d", row)
			if err := f.SetCellStyle(SheetSummary, actionCell, actionCell, style); err != nil {
				return fmt.Errorf("failed to style row %d: %w", row, err)
			}
		}

		for _, d := range res.Discrepancies {
			cell, _ := excelize.CoordinatesToCellName(1, discRow)
			values := discrepancyRow(res, d)
			if err := f.SetSheetRow(SheetDiscrepancies, cell, &values); err != nil {
				return fmt.Errorf("failed to write discrepancy row %d: %w", discRow, err)
			}
			discRow++
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	w.logger.Info("Report written",
		zap.String("path", path),
		zap.Int("invoices", len(results)),
		zap.Int("discrepancies", discRow-2))

	return nil
}

func actionStyles(f *excelize.File) (map[entity.Action]int, error) {
	styles := make(map[entity.Action]int, len(actionColors))
	for action, color := range actionColors {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create style: %w", err)
		}
		styles[action] = style
	}
	return styles, nil
}

func summaryRow(res *entity.ReconciliationResult) []interface{} {
	matchedPO, method, poConfidence := "", "", 0.0
	if m := res.MatchingResults; m != nil {
		if m.MatchedPO != nil {
			matchedPO = *m.MatchedPO
		}
		method = string(m.MatchMethod)
		poConfidence = m.POMatchConfidence
	}

	return []interface{}{
		res.DocumentInfo.Filename,
		res.InvoiceID,
		matchedPO,
		method,
		poConfidence,
		len(res.Discrepancies),
		string(res.RecommendedAction),
		string(res.RiskLevel),
		res.OverallConfidence,
		res.NeedsReprocessing,
		res.Error,
	}
}

func discrepancyRow(res *entity.ReconciliationResult, d entity.Discrepancy) []interface{} {
	var line, variance interface{} = "", ""
	if d.LineItemIndex != nil {
		line = *d.LineItemIndex + 1
	}
	if d.VariancePercentage != nil {
		variance = *d.VariancePercentage
	}

	return []interface{}{
		res.DocumentInfo.Filename,
		res.InvoiceID,
		string(d.Type),
		string(d.Severity),
		line,
		variance,
		d.Details,
		string(d.RecommendedAction),
	}
}
