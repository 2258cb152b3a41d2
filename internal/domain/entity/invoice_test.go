package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestExtractedInvoice_HasPOReference(t *testing.T) {
	tests := []struct {
		name     string
		inv      *ExtractedInvoice
		expected bool
	}{
		{"nil invoice", nil, false},
		{"no reference", &ExtractedInvoice{}, false},
		{"blank reference", &ExtractedInvoice{POReference: strPtr("  ")}, false},
		{"present", &ExtractedInvoice{POReference: strPtr("PO-2024-001")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.inv.HasPOReference())
		})
	}
}

func TestExtractedInvoice_Validate(t *testing.T) {
	ok := &ExtractedInvoice{LineItems: []LineItem{{Description: "Tomatoes", Quantity: 2, UnitPrice: 1.5}}}
	assert.NoError(t, ok.Validate())

	negQty := &ExtractedInvoice{LineItems: []LineItem{{Quantity: -1}}}
	assert.Error(t, negQty.Validate())

	negPrice := &ExtractedInvoice{LineItems: []LineItem{{UnitPrice: -0.01}}}
	assert.Error(t, negPrice.Validate())
}

func TestExtractedInvoice_SupplierVATKey(t *testing.T) {
	var inv ExtractedInvoice
	require.NoError(t, json.Unmarshal([]byte(`{"invoice_number":"INV-1","supplier_vat":"GB123456789"}`), &inv))
	require.NotNil(t, inv.SupplierVAT)
	assert.Equal(t, "GB123456789", *inv.SupplierVAT)

	out, err := json.Marshal(inv)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"supplier_vat":"GB123456789"`)
}

func TestExtractedInvoice_CurrencyOrDefault(t *testing.T) {
	assert.Equal(t, "GBP", (&ExtractedInvoice{}).CurrencyOrDefault())
	assert.Equal(t, "EUR", (&ExtractedInvoice{Currency: " eur "}).CurrencyOrDefault())
}

func TestReviewResult_NeedsReprocessing(t *testing.T) {
	assert.False(t, (*ReviewResult)(nil).NeedsReprocessing())
	assert.False(t, (&ReviewResult{ApprovalStatus: ReviewNeedsCorrection}).NeedsReprocessing())
	assert.False(t, (&ReviewResult{ApprovalStatus: ReviewApproved, Corrections: []Correction{{Field: "total"}}}).NeedsReprocessing())
	assert.True(t, (&ReviewResult{ApprovalStatus: ReviewNeedsCorrection, Corrections: []Correction{{Field: "total"}}}).NeedsReprocessing())
}

func TestAction_NeedsHuman(t *testing.T) {
	assert.False(t, ActionAutoApprove.NeedsHuman())
	assert.True(t, ActionFlagForReview.NeedsHuman())
	assert.True(t, ActionEscalate.NeedsHuman())
	assert.False(t, Action("bogus").IsValid())
}
