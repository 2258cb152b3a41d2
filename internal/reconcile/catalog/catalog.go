// Package catalog holds the read-only set of purchase orders an invoice is
// reconciled against.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/similarity"
)

// Catalog is populated once and never mutated, so concurrent readers need no locking.
type Catalog struct {
	orders   []entity.PurchaseOrder
	byNumber map[string]int
}

// SupplierMatch is a PO whose supplier resembles the queried name
type SupplierMatch struct {
	PO    *entity.PurchaseOrder
	Score float64
}

// ProductMatch is a PO whose line items resemble the queried descriptions
type ProductMatch struct {
	PO                *entity.PurchaseOrder
	CombinedScore     float64
	MatchedCount      int
	TotalDescriptions int
}

// MatchRate is the share of queried descriptions that found a PO line
func (m ProductMatch) MatchRate() float64 {
	if m.TotalDescriptions == 0 {
		return 0
	}
	return float64(m.MatchedCount) / float64(m.TotalDescriptions)
}

// New builds a catalog from orders. PO numbers must be unique ignoring case.
func New(orders []entity.PurchaseOrder) (*Catalog, error) {
	c := &Catalog{
		orders:   make([]entity.PurchaseOrder, len(orders)),
		byNumber: make(map[string]int, len(orders)),
	}
	copy(c.orders, orders)

	for i, po := range c.orders {
		key := numberKey(po.PONumber)
		if key == "" {
			return nil, fmt.Errorf("%w: purchase order %d", ErrMissingPONumber, i)
		}
		if _, dup := c.byNumber[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePO, po.PONumber)
		}
		c.byNumber[key] = i
	}

	return c, nil
}

// Len returns the number of purchase orders
func (c *Catalog) Len() int {
	return len(c.orders)
}

// All returns a copy of the purchase orders in catalog order
func (c *Catalog) All() []entity.PurchaseOrder {
	out := make([]entity.PurchaseOrder, len(c.orders))
	copy(out, c.orders)
	return out
}

// ByExactNumber looks a PO up by number, ignoring case and surrounding whitespace
func (c *Catalog) ByExactNumber(ref string) (*entity.PurchaseOrder, bool) {
	i, ok := c.byNumber[numberKey(ref)]
	if !ok {
		return nil, false
	}
	return &c.orders[i], true
}

// FuzzySupplierMatches returns POs whose supplier scores at least threshold
// against name, best first.
func (c *Catalog) FuzzySupplierMatches(name string, threshold float64) []SupplierMatch {
	var matches []SupplierMatch
	for i := range c.orders {
		score := similarity.Similarity(name, c.orders[i].Supplier)
		if score >= threshold {
			matches = append(matches, SupplierMatch{PO: &c.orders[i], Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// FuzzyProductMatches scores every PO by how many of descriptions find a line
// item at or above threshold. Ranked by matched count, then combined score.
func (c *Catalog) FuzzyProductMatches(descriptions []string, threshold float64) []ProductMatch {
	if len(descriptions) == 0 {
		return nil
	}

	var matches []ProductMatch
	for i := range c.orders {
		poDescs := c.orders[i].Descriptions()

		matched := 0
		scoreSum := 0.0
		for _, d := range descriptions {
			if _, score, ok := similarity.BestMatch(d, poDescs, threshold); ok {
				matched++
				scoreSum += score
			}
		}
		if matched == 0 {
			continue
		}

		matchRate := float64(matched) / float64(len(descriptions))
		avgScore := scoreSum / float64(matched)
		matches = append(matches, ProductMatch{
			PO:                &c.orders[i],
			CombinedScore:     0.6*matchRate + 0.4*avgScore,
			MatchedCount:      matched,
			TotalDescriptions: len(descriptions),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].MatchedCount != matches[j].MatchedCount {
			return matches[i].MatchedCount > matches[j].MatchedCount
		}
		return matches[i].CombinedScore > matches[j].CombinedScore
	})
	return matches
}

func numberKey(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}
