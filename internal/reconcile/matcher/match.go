package matcher

import "github.com/garyjia/invoice-reconciliation/internal/domain/entity"

// Match is the tier that matched an invoice: one of ExactMatch,
// SupplierProductMatch, ProductOnlyMatch or NoMatch.
type Match interface {
	Method() entity.MatchMethod
	isMatch()
}

// ExactMatch is a hit on the invoice's PO reference
type ExactMatch struct {
	Order *entity.PurchaseOrder
}

// SupplierProductMatch is converging supplier and line item evidence
type SupplierProductMatch struct {
	Order          *entity.PurchaseOrder
	SupplierScore  float64
	ProductScore   float64
	TotalDiffRatio float64
	Confidence     float64
}

// ProductOnlyMatch is line item evidence alone
type ProductOnlyMatch struct {
	Order             *entity.PurchaseOrder
	CombinedScore     float64
	MatchedCount      int
	TotalDescriptions int
	Confidence        float64
}

// NoMatch means no tier succeeded
type NoMatch struct{}

func (ExactMatch) Method() entity.MatchMethod           { return entity.MatchMethodExactReference }
func (SupplierProductMatch) Method() entity.MatchMethod { return entity.MatchMethodSupplierProduct }
func (ProductOnlyMatch) Method() entity.MatchMethod     { return entity.MatchMethodProductOnly }
func (NoMatch) Method() entity.MatchMethod              { return entity.MatchMethodNone }

func (ExactMatch) isMatch()           {}
func (SupplierProductMatch) isMatch() {}
func (ProductOnlyMatch) isMatch()     {}
func (NoMatch) isMatch()              {}

// orderAndConfidence unpacks a match
func orderAndConfidence(m Match, exactConfidence float64) (*entity.PurchaseOrder, float64) {
	switch v := m.(type) {
	case ExactMatch:
		return v.Order, exactConfidence
	case SupplierProductMatch:
		return v.Order, v.Confidence
	case ProductOnlyMatch:
		return v.Order, v.Confidence
	case NoMatch:
		return nil, 0
	default:
		panic("matcher: unknown match type")
	}
}
