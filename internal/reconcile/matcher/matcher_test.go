package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/catalog"
)

func strPtr(s string) *string { return &s }

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	c, err := catalog.New([]entity.PurchaseOrder{
		{
			PONumber: "PO-2024-001",
			Supplier: "Fresh Food Supplies Ltd",
			Total:    1000,
			LineItems: []entity.LineItem{
				{Description: "Fresh Tomatoes", Quantity: 100, UnitPrice: 5},
				{Description: "Organic Carrots", Quantity: 50, UnitPrice: 10},
			},
		},
		{
			PONumber: "PO-2024-002",
			Supplier: "Dairy Direct",
			Total:    500,
			LineItems: []entity.LineItem{
				{Description: "Whole Milk", Quantity: 100, UnitPrice: 2},
				{Description: "Cheddar Cheese", Quantity: 30, UnitPrice: 10},
			},
		},
		{
			PONumber: "PO-2024-003",
			Supplier: "Fresh Food Supplies Ltd",
			Total:    2000,
			LineItems: []entity.LineItem{
				{Description: "Fresh Tomatoes", Quantity: 200, UnitPrice: 5},
				{Description: "Red Onions", Quantity: 500, UnitPrice: 2},
			},
		},
	})
	require.NoError(t, err)
	return New(c, DefaultConfig(), zap.NewNop())
}

func invoice(supplier string, total float64, ref *string, descs ...string) *entity.ExtractedInvoice {
	inv := &entity.ExtractedInvoice{
		InvoiceNumber: "INV-1",
		SupplierName:  supplier,
		POReference:   ref,
		Total:         total,
	}
	for _, d := range descs {
		inv.LineItems = append(inv.LineItems, entity.LineItem{Description: d, Quantity: 1, UnitPrice: 1})
	}
	return inv
}

func TestMatch_ExactReference(t *testing.T) {
	m := newTestMatcher(t)

	// Exact tier ignores supplier, totals and line items
	out := m.Match(invoice("Someone Else", 99999, strPtr(" po-2024-002 "), "Titanium Bolts"))

	require.IsType(t, ExactMatch{}, out.Match)
	assert.Equal(t, entity.MatchMethodExactReference, out.Result.MatchMethod)
	assert.Equal(t, 0.98, out.Result.POMatchConfidence)
	require.NotNil(t, out.Result.MatchedPO)
	assert.Equal(t, "PO-2024-002", *out.Result.MatchedPO)
	assert.False(t, out.Result.SupplierMatch)
	assert.Equal(t, 0, out.Result.LineItemsMatched)
	assert.Empty(t, out.Result.AlternativeMatches)
	assert.Equal(t, "PO-2024-002", out.PO().PONumber)
}

func TestMatch_UnknownReferenceFallsThrough(t *testing.T) {
	m := newTestMatcher(t)

	out := m.Match(invoice("Fresh Food Supplies", 1000, strPtr("PO-1999-999"), "Fresh Tomatoes", "Organic Carrots"))

	assert.Equal(t, entity.MatchMethodSupplierProduct, out.Result.MatchMethod)
	assert.Equal(t, "PO-2024-001", *out.Result.MatchedPO)
}

func TestMatch_SupplierProduct(t *testing.T) {
	m := newTestMatcher(t)

	out := m.Match(invoice("Fresh Food Supplies", 1000, nil, "Fresh Tomatoes", "Organic Carrots"))

	match, ok := out.Match.(SupplierProductMatch)
	require.True(t, ok)
	assert.Equal(t, "PO-2024-001", match.Order.PONumber)
	assert.InDelta(t, 0.90, out.Result.POMatchConfidence, 0.0001)
	assert.True(t, out.Result.SupplierMatch)
	assert.Equal(t, 2, out.Result.LineItemsMatched)
	assert.Equal(t, 1.0, out.Result.MatchRate)
	assert.Empty(t, out.Result.AlternativeMatches)
}

func TestMatch_SupplierProductRespectsTotalPlausibility(t *testing.T) {
	m := newTestMatcher(t)

	// PO-2024-001 is 100% off on total, so the second supplier PO wins
	out := m.Match(invoice("Fresh Food Supplies", 2000, nil, "Fresh Tomatoes", "Organic Carrots"))

	match, ok := out.Match.(SupplierProductMatch)
	require.True(t, ok)
	assert.Equal(t, "PO-2024-003", match.Order.PONumber)
	assert.InDelta(t, 0.7, match.ProductScore, 0.0001)
	assert.InDelta(t, 0.88, out.Result.POMatchConfidence, 0.0001)
	assert.Equal(t, 1, out.Result.LineItemsMatched)
	assert.Equal(t, 2, out.Result.LineItemsTotal)
	assert.InDelta(t, 0.5, out.Result.MatchRate, 0.0001)
}

func TestMatch_ProductOnly(t *testing.T) {
	m := newTestMatcher(t)

	out := m.Match(invoice("Unknown Vendor", 500, nil, "Whole Milk", "Cheddar Cheese"))

	match, ok := out.Match.(ProductOnlyMatch)
	require.True(t, ok)
	assert.Equal(t, "PO-2024-002", match.Order.PONumber)
	assert.Equal(t, entity.MatchMethodProductOnly, out.Result.MatchMethod)
	assert.InDelta(t, 0.70, out.Result.POMatchConfidence, 0.0001)
	assert.False(t, out.Result.SupplierMatch)
	for _, alt := range out.Result.AlternativeMatches {
		assert.NotEqual(t, "PO-2024-002", alt.PONumber)
	}
}

func TestMatch_ProductOnlyAlternatives(t *testing.T) {
	m := newTestMatcher(t)

	out := m.Match(invoice("Unknown Vendor", 500, nil, "Fresh Tomatoes"))

	require.Equal(t, entity.MatchMethodProductOnly, out.Result.MatchMethod)
	assert.Equal(t, "PO-2024-001", *out.Result.MatchedPO)
	require.Len(t, out.Result.AlternativeMatches, 1)
	assert.Equal(t, entity.AlternativeMatch{
		PONumber:     "PO-2024-003",
		Supplier:     "Fresh Food Supplies Ltd",
		Confidence:   1.0,
		MatchedItems: 1,
	}, out.Result.AlternativeMatches[0])
}

func TestMatch_ProductOnlyNeedsMatchRate(t *testing.T) {
	m := newTestMatcher(t)

	out := m.Match(invoice("Unknown Vendor", 500, nil, "Fresh Tomatoes", "Titanium Bolts", "Steel Nuts"))

	assert.IsType(t, NoMatch{}, out.Match)
	assert.Equal(t, entity.MatchMethodNone, out.Result.MatchMethod)
}

func TestMatch_NoMatch(t *testing.T) {
	m := newTestMatcher(t)

	out := m.Match(invoice("Acme Bolts", 10, nil, "Titanium Bolts"))

	assert.IsType(t, NoMatch{}, out.Match)
	assert.Nil(t, out.Result.MatchedPO)
	assert.Nil(t, out.PO())
	assert.Equal(t, 0.0, out.Result.POMatchConfidence)
	assert.Equal(t, 1, out.Result.LineItemsTotal)
	assert.Contains(t, out.Reasoning, "No matching PO found")
}

func TestMatch_NilInvoice(t *testing.T) {
	m := newTestMatcher(t)

	out := m.Match(nil)

	assert.IsType(t, NoMatch{}, out.Match)
	assert.Nil(t, out.Result.MatchedPO)
	assert.Equal(t, entity.MatchMethodNone, out.Result.MatchMethod)
}

func TestMatch_MatchedPOIffMethodMatched(t *testing.T) {
	m := newTestMatcher(t)

	invoices := []*entity.ExtractedInvoice{
		invoice("Someone", 1, strPtr("PO-2024-001")),
		invoice("Fresh Food Supplies", 1000, nil, "Fresh Tomatoes", "Organic Carrots"),
		invoice("Unknown Vendor", 500, nil, "Whole Milk"),
		invoice("Acme Bolts", 10, nil, "Titanium Bolts"),
	}

	for _, inv := range invoices {
		out := m.Match(inv)
		assert.Equal(t, out.Result.MatchMethod != entity.MatchMethodNone, out.Result.MatchedPO != nil)
		assert.Equal(t, out.Match.Method(), out.Result.MatchMethod)
	}
}

func TestMatch_Idempotent(t *testing.T) {
	m := newTestMatcher(t)
	inv := invoice("Unknown Vendor", 500, nil, "Fresh Tomatoes")

	assert.Equal(t, m.Match(inv), m.Match(inv))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.SupplierThreshold = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.ProductOnlyCap = 0.95
	assert.Error(t, bad.Validate())
}
