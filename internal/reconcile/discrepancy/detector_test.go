package discrepancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

func testPO() *entity.PurchaseOrder {
	return &entity.PurchaseOrder{
		PONumber: "PO-2024-017",
		Supplier: "Fresh Food Supplies Ltd",
		Total:    1000,
		LineItems: []entity.LineItem{
			{Description: "Fresh Tomatoes", Quantity: 100, Unit: "kg", UnitPrice: 10, LineTotal: 1000},
		},
	}
}

func testInvoice(price, qty, total float64) *entity.ExtractedInvoice {
	ref := "PO-2024-017"
	return &entity.ExtractedInvoice{
		InvoiceNumber: "INV-001",
		SupplierName:  "Fresh Food Supplies Ltd",
		POReference:   &ref,
		Currency:      "GBP",
		Total:         total,
		LineItems: []entity.LineItem{
			{Description: "Fresh Tomatoes", Quantity: qty, Unit: "kg", UnitPrice: price, LineTotal: price * qty},
		},
	}
}

func newDetector() *Detector {
	return NewDetector(DefaultTolerances(), zap.NewNop())
}

func TestDetect_Clean(t *testing.T) {
	report := newDetector().Detect(testInvoice(10, 100, 1000), testPO())

	assert.Empty(t, report.Discrepancies)
	assert.Contains(t, report.Reasoning, "No discrepancies detected")
}

func TestDetect_NilInvoice(t *testing.T) {
	report := newDetector().Detect(nil, testPO())

	assert.Empty(t, report.Discrepancies)
	assert.Contains(t, report.Reasoning, "No extracted data")
}

func TestDetect_PriceBands(t *testing.T) {
	tests := []struct {
		name         string
		price        float64
		wantFound    bool
		wantSeverity entity.Severity
		wantAction   entity.Action
		wantVariance float64
	}{
		{"exact", 10.00, false, "", "", 0},
		{"within 2 percent", 10.20, false, "", "", 0},
		{"small decrease", 9.85, false, "", "", 0},
		{"medium increase", 10.40, true, entity.SeverityMedium, entity.ActionFlagForReview, 4},
		{"high but reviewable", 10.80, true, entity.SeverityHigh, entity.ActionFlagForReview, 8},
		{"fifteen percent boundary", 11.50, true, entity.SeverityHigh, entity.ActionFlagForReview, 15},
		{"beyond fifteen percent", 12.00, true, entity.SeverityHigh, entity.ActionEscalate, 20},
		{"large decrease", 8.00, true, entity.SeverityHigh, entity.ActionEscalate, -20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// total kept at PO value so only the price check can fire
			report := newDetector().Detect(testInvoice(tt.price, 100, 1000), testPO())

			var found *entity.Discrepancy
			for i := range report.Discrepancies {
				if report.Discrepancies[i].Type == entity.DiscrepancyPriceMismatch {
					found = &report.Discrepancies[i]
				}
			}

			if !tt.wantFound {
				assert.Nil(t, found)
				return
			}
			require.NotNil(t, found)
			assert.Equal(t, tt.wantSeverity, found.Severity)
			assert.Equal(t, tt.wantAction, found.RecommendedAction)
			assert.Equal(t, 0.99, found.Confidence)
			require.NotNil(t, found.VariancePercentage)
			assert.InDelta(t, tt.wantVariance, *found.VariancePercentage, 0.001)
			require.NotNil(t, found.LineItemIndex)
			assert.Equal(t, 0, *found.LineItemIndex)
		})
	}
}

func TestDetect_ScenarioB(t *testing.T) {
	report := newDetector().Detect(testInvoice(11.50, 100, 1000), testPO())

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, entity.DiscrepancyPriceMismatch, d.Type)
	assert.Equal(t, entity.SeverityHigh, d.Severity)
	assert.Equal(t, "Unit price for \"Fresh Tomatoes\" is £11.50 vs PO £10.00 (15.00% increase).", d.Details)
}

func TestDetect_QuantityBands(t *testing.T) {
	tests := []struct {
		name         string
		qty          float64
		wantFound    bool
		wantSeverity entity.Severity
	}{
		{"equal", 100, false, ""},
		{"five percent over", 105, true, entity.SeverityMedium},
		{"ten percent under", 90, true, entity.SeverityMedium},
		{"twenty percent over", 120, true, entity.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := newDetector().Detect(testInvoice(10, tt.qty, 1000), testPO())

			var found *entity.Discrepancy
			for i := range report.Discrepancies {
				if report.Discrepancies[i].Type == entity.DiscrepancyQuantityMismatch {
					found = &report.Discrepancies[i]
				}
			}
			if !tt.wantFound {
				assert.Nil(t, found)
				return
			}
			require.NotNil(t, found)
			assert.Equal(t, tt.wantSeverity, found.Severity)
			assert.Equal(t, entity.ActionFlagForReview, found.RecommendedAction)
			assert.Equal(t, 0.98, found.Confidence)
		})
	}
}

func TestDetect_ZeroReferenceValuesSkipChecks(t *testing.T) {
	po := testPO()
	po.LineItems[0].UnitPrice = 0
	po.LineItems[0].Quantity = 0
	po.Total = 0

	report := newDetector().Detect(testInvoice(12, 150, 1800), po)

	assert.Empty(t, report.Discrepancies)
}

func TestDetect_ExtraItem(t *testing.T) {
	inv := testInvoice(10, 100, 1000)
	inv.LineItems = append(inv.LineItems, entity.LineItem{Description: "Titanium Bolts", Quantity: 1, UnitPrice: 1})

	report := newDetector().Detect(inv, testPO())

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, entity.DiscrepancyExtraItem, d.Type)
	assert.Equal(t, entity.SeverityMedium, d.Severity)
	assert.Equal(t, 0.85, d.Confidence)
	assert.Equal(t, 1, *d.LineItemIndex)
}

func TestDetect_ScenarioC_MissingReferenceWithFuzzyMatch(t *testing.T) {
	inv := testInvoice(10, 100, 1000)
	inv.POReference = nil

	report := newDetector().Detect(inv, testPO())

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, entity.DiscrepancyMissingPOReference, d.Type)
	assert.Equal(t, entity.SeverityMedium, d.Severity)
	assert.Equal(t, entity.ActionFlagForReview, d.RecommendedAction)
	assert.Equal(t, 0.95, d.Confidence)
	assert.Contains(t, d.Details, "PO-2024-017")
}

func TestDetect_MissingReferenceWithoutMatch(t *testing.T) {
	inv := testInvoice(50, 1, 99999)
	inv.POReference = nil

	report := newDetector().Detect(inv, nil)

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, entity.DiscrepancyMissingPOReference, d.Type)
	assert.Equal(t, entity.SeverityHigh, d.Severity)
	assert.Equal(t, entity.ActionEscalate, d.RecommendedAction)
	assert.Contains(t, report.Reasoning, "No PO matched")
}

func TestDetect_NoPOWithReferenceStops(t *testing.T) {
	report := newDetector().Detect(testInvoice(50, 1, 99999), nil)

	assert.Empty(t, report.Discrepancies)
}

func TestDetect_TotalVariance(t *testing.T) {
	tests := []struct {
		name         string
		invTotal     float64
		poTotal      float64
		wantFound    bool
		wantSeverity entity.Severity
		wantAction   entity.Action
	}{
		{"within five pounds", 1004, 1000, false, "", ""},
		{"within one percent", 10050, 10000, false, "", ""},
		{"five percent over", 1050, 1000, true, entity.SeverityMedium, entity.ActionFlagForReview},
		{"scenario D", 1000, 1200, true, entity.SeverityHigh, entity.ActionEscalate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			po := testPO()
			po.Total = tt.poTotal

			report := newDetector().Detect(testInvoice(10, 100, tt.invTotal), po)

			var found *entity.Discrepancy
			for i := range report.Discrepancies {
				if report.Discrepancies[i].Type == entity.DiscrepancyTotalVariance {
					found = &report.Discrepancies[i]
				}
			}
			if !tt.wantFound {
				assert.Nil(t, found)
				return
			}
			require.NotNil(t, found)
			assert.Equal(t, tt.wantSeverity, found.Severity)
			assert.Equal(t, tt.wantAction, found.RecommendedAction)
			assert.Equal(t, 0.99, found.Confidence)
		})
	}
}

func TestDetect_ScenarioD_Details(t *testing.T) {
	po := testPO()
	po.Total = 1200

	report := newDetector().Detect(testInvoice(10, 100, 1000), po)

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.InDelta(t, 16.67, *d.VariancePercentage, 0.0001)
	assert.Equal(t, "Invoice total £1000.00 vs PO total £1200.00 (variance -£200.00, 16.67%).", d.Details)
	assert.Equal(t, "Detected 1 discrepancies (1 high).", report.Reasoning)
}

func TestDetect_DetectionOrder(t *testing.T) {
	inv := testInvoice(12, 120, 1500)
	inv.POReference = nil
	inv.LineItems = append(inv.LineItems, entity.LineItem{Description: "Titanium Bolts"})

	report := newDetector().Detect(inv, testPO())

	var types []entity.DiscrepancyType
	for _, d := range report.Discrepancies {
		types = append(types, d.Type)
	}
	assert.Equal(t, []entity.DiscrepancyType{
		entity.DiscrepancyMissingPOReference,
		entity.DiscrepancyPriceMismatch,
		entity.DiscrepancyQuantityMismatch,
		entity.DiscrepancyExtraItem,
		entity.DiscrepancyTotalVariance,
	}, types)
	assert.Equal(t, 3, report.Count(entity.SeverityHigh))
}

func TestTotalVariance(t *testing.T) {
	d := newDetector()

	assert.Equal(t, entity.TotalVariance{WithinTolerance: true}, d.TotalVariance(testInvoice(10, 100, 1000), nil))

	po := testPO()
	po.Total = 1200
	tv := d.TotalVariance(testInvoice(10, 100, 1000), po)
	assert.Equal(t, -200.0, tv.Amount)
	assert.Equal(t, -16.67, tv.Percentage)
	assert.False(t, tv.WithinTolerance)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "£5.00", Money("GBP", 5))
	assert.Equal(t, "-£200.00", Money("GBP", -200))
	assert.Equal(t, "€1.50", Money("EUR", 1.5))
	assert.Equal(t, "5.00 JPY", Money("JPY", 5))
}

func TestTolerances_Validate(t *testing.T) {
	assert.NoError(t, DefaultTolerances().Validate())

	bad := DefaultTolerances()
	bad.PriceEscalate = 0.01
	assert.Error(t, bad.Validate())
}
