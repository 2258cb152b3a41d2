package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
)

func testOrders() []entity.PurchaseOrder {
	return []entity.PurchaseOrder{
		{
			PONumber: "PO-2024-001",
			Supplier: "Fresh Food Supplies Ltd",
			Total:    1000,
			LineItems: []entity.LineItem{
				{Description: "Fresh Tomatoes", Quantity: 100, UnitPrice: 5, LineTotal: 500},
				{Description: "Organic Carrots", Quantity: 50, UnitPrice: 10, LineTotal: 500},
			},
		},
		{
			PONumber: "PO-2024-002",
			Supplier: "Dairy Direct",
			Total:    500,
			LineItems: []entity.LineItem{
				{Description: "Whole Milk", Quantity: 100, UnitPrice: 2, LineTotal: 200},
				{Description: "Cheddar Cheese", Quantity: 30, UnitPrice: 10, LineTotal: 300},
			},
		},
		{
			PONumber: "PO-2024-003",
			Supplier: "Fresh Food Supplies Ltd",
			Total:    2000,
			LineItems: []entity.LineItem{
				{Description: "Fresh Tomatoes", Quantity: 200, UnitPrice: 5, LineTotal: 1000},
				{Description: "Red Onions", Quantity: 500, UnitPrice: 2, LineTotal: 1000},
			},
		},
	}
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(testOrders())
	require.NoError(t, err)
	return c
}

func TestNew_RejectsDuplicates(t *testing.T) {
	orders := testOrders()
	orders[1].PONumber = "po-2024-001"

	_, err := New(orders)
	assert.ErrorIs(t, err, ErrDuplicatePO)
}

func TestNew_RejectsMissingNumber(t *testing.T) {
	_, err := New([]entity.PurchaseOrder{{Supplier: "Anon"}})
	assert.ErrorIs(t, err, ErrMissingPONumber)
}

func TestNew_CopiesInput(t *testing.T) {
	orders := testOrders()
	c, err := New(orders)
	require.NoError(t, err)

	orders[0].Supplier = "Changed"
	po, ok := c.ByExactNumber("PO-2024-001")
	require.True(t, ok)
	assert.Equal(t, "Fresh Food Supplies Ltd", po.Supplier)
}

func TestByExactNumber(t *testing.T) {
	c := newTestCatalog(t)

	tests := []struct {
		name   string
		ref    string
		want   string
		wantOK bool
	}{
		{"exact", "PO-2024-002", "PO-2024-002", true},
		{"lower case", "po-2024-002", "PO-2024-002", true},
		{"padded", "  PO-2024-003 ", "PO-2024-003", true},
		{"unknown", "PO-9999-999", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			po, ok := c.ByExactNumber(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, po.PONumber)
			}
		})
	}
}

func TestFuzzySupplierMatches(t *testing.T) {
	c := newTestCatalog(t)

	matches := c.FuzzySupplierMatches("FRESH FOOD SUPPLIES LTD", 0.6)
	require.Len(t, matches, 2)
	assert.Equal(t, "PO-2024-001", matches[0].PO.PONumber)
	assert.Equal(t, "PO-2024-003", matches[1].PO.PONumber)
	assert.InDelta(t, 1.0, matches[0].Score, 0.001)

	assert.Empty(t, c.FuzzySupplierMatches("", 0.6))
}

func TestFuzzyProductMatches(t *testing.T) {
	c := newTestCatalog(t)

	matches := c.FuzzyProductMatches([]string{"Fresh Tomatoes", "Organic Carrots"}, 0.7)
	require.Len(t, matches, 2)

	assert.Equal(t, "PO-2024-001", matches[0].PO.PONumber)
	assert.Equal(t, 2, matches[0].MatchedCount)
	assert.InDelta(t, 1.0, matches[0].CombinedScore, 0.001)
	assert.InDelta(t, 1.0, matches[0].MatchRate(), 0.001)

	assert.Equal(t, "PO-2024-003", matches[1].PO.PONumber)
	assert.Equal(t, 1, matches[1].MatchedCount)
	assert.InDelta(t, 0.7, matches[1].CombinedScore, 0.001)
}

func TestFuzzyProductMatches_Empty(t *testing.T) {
	c := newTestCatalog(t)
	assert.Empty(t, c.FuzzyProductMatches(nil, 0.7))
	assert.Empty(t, c.FuzzyProductMatches([]string{"Titanium Bolts"}, 0.7))
}
