// Package matcher finds the purchase order an invoice fulfils, trying an exact
// PO reference first, then supplier plus product evidence, then products alone.
package matcher

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/catalog"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/similarity"
)

// Catalog is the read-only PO lookup the matcher searches
type Catalog interface {
	ByExactNumber(ref string) (*entity.PurchaseOrder, bool)
	FuzzySupplierMatches(name string, threshold float64) []catalog.SupplierMatch
	FuzzyProductMatches(descriptions []string, threshold float64) []catalog.ProductMatch
}

// Config holds the matcher's thresholds and confidence caps
type Config struct {
	ExactConfidence        float64
	SupplierThreshold      float64
	SupplierProductMinimum float64
	TotalTolerance         float64
	SupplierProductCap     float64
	ProductOnlyThreshold   float64
	ProductOnlyMinRate     float64
	ProductOnlyCap         float64
	LineItemThreshold      float64
	SupplierMatchThreshold float64
	AlternativesBelow      float64
	AlternativeThreshold   float64
	MaxAlternatives        int
}

// DefaultConfig returns the standard matching thresholds
func DefaultConfig() Config {
	return Config{
		ExactConfidence:        0.98,
		SupplierThreshold:      0.60,
		SupplierProductMinimum: 0.65,
		TotalTolerance:         0.15,
		SupplierProductCap:     0.90,
		ProductOnlyThreshold:   0.70,
		ProductOnlyMinRate:     0.70,
		ProductOnlyCap:         0.70,
		LineItemThreshold:      0.70,
		SupplierMatchThreshold: 0.70,
		AlternativesBelow:      0.80,
		AlternativeThreshold:   0.60,
		MaxAlternatives:        3,
	}
}

// Validate checks that every threshold is a probability and the caps are ordered
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"exact_confidence":         c.ExactConfidence,
		"supplier_threshold":       c.SupplierThreshold,
		"supplier_product_minimum": c.SupplierProductMinimum,
		"supplier_product_cap":     c.SupplierProductCap,
		"product_only_threshold":   c.ProductOnlyThreshold,
		"product_only_min_rate":    c.ProductOnlyMinRate,
		"product_only_cap":         c.ProductOnlyCap,
		"line_item_threshold":      c.LineItemThreshold,
		"supplier_match_threshold": c.SupplierMatchThreshold,
		"alternatives_below":       c.AlternativesBelow,
		"alternative_threshold":    c.AlternativeThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0.0 and 1.0, got %.2f", name, v)
		}
	}
	if c.TotalTolerance <= 0 {
		return fmt.Errorf("total_tolerance must be positive, got %.2f", c.TotalTolerance)
	}
	if c.ProductOnlyCap > c.SupplierProductCap || c.SupplierProductCap > c.ExactConfidence {
		return fmt.Errorf("confidence caps must satisfy product_only <= supplier_product <= exact")
	}
	if c.MaxAlternatives < 0 {
		return fmt.Errorf("max_alternatives must be >= 0, got %d", c.MaxAlternatives)
	}
	return nil
}

// Outcome is a match together with its flattened result record
type Outcome struct {
	Match     Match
	Result    entity.MatchingResult
	Reasoning string
}

// PO returns the matched purchase order, or nil
func (o Outcome) PO() *entity.PurchaseOrder {
	if o.Match == nil {
		return nil
	}
	po, _ := orderAndConfidence(o.Match, 0)
	return po
}

// Matcher runs the tiered PO search. It holds no mutable state.
type Matcher struct {
	catalog Catalog
	cfg     Config
	logger  *zap.Logger
}

// New creates a matcher over c
func New(c Catalog, cfg Config, logger *zap.Logger) *Matcher {
	return &Matcher{
		catalog: c,
		cfg:     cfg,
		logger:  logger,
	}
}

// Match finds the PO for inv. Tiers are tried in order and the first success wins.
func (m *Matcher) Match(inv *entity.ExtractedInvoice) Outcome {
	if inv == nil {
		return Outcome{
			Match:     NoMatch{},
			Result:    m.result(nil, NoMatch{}),
			Reasoning: "No extracted invoice data available for matching.",
		}
	}

	match, reasoning := m.tiers(inv)
	result := m.result(inv, match)

	if result.MatchedPO != nil {
		reasoning += fmt.Sprintf(" Line items matched: %d/%d.", result.LineItemsMatched, result.LineItemsTotal)
		if n := len(result.AlternativeMatches); n > 0 {
			reasoning += fmt.Sprintf(" %d alternative candidate(s) offered for review.", n)
		}
	}

	m.logger.Debug("PO matching complete",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("method", string(result.MatchMethod)),
		zap.Float64("confidence", result.POMatchConfidence))

	return Outcome{Match: match, Result: result, Reasoning: reasoning}
}

func (m *Matcher) tiers(inv *entity.ExtractedInvoice) (Match, string) {
	if inv.HasPOReference() {
		if po, ok := m.catalog.ByExactNumber(*inv.POReference); ok {
			return ExactMatch{Order: po}, fmt.Sprintf("Exact PO reference match: %s.", po.PONumber)
		}
	}

	descs := inv.Descriptions()

	if match, ok := m.supplierProduct(inv, descs); ok {
		return match, fmt.Sprintf("Fuzzy match on supplier (%.0f%%) and products (%.0f%%): %s.",
			match.SupplierScore*100, match.ProductScore*100, match.Order.PONumber)
	}

	if match, ok := m.productOnly(descs); ok {
		return match, fmt.Sprintf("Product-only match: %s with %d/%d line items matched.",
			match.Order.PONumber, match.MatchedCount, match.TotalDescriptions)
	}

	reason := "No matching PO found"
	if inv.HasPOReference() {
		reason += fmt.Sprintf("; PO reference %s is not in the catalog", strings.TrimSpace(*inv.POReference))
	}
	if inv.SupplierName != "" {
		reason += fmt.Sprintf(" for supplier %q", inv.SupplierName)
	}
	return NoMatch{}, reason + "."
}

func (m *Matcher) supplierProduct(inv *entity.ExtractedInvoice, descs []string) (SupplierProductMatch, bool) {
	suppliers := m.catalog.FuzzySupplierMatches(inv.SupplierName, m.cfg.SupplierThreshold)
	if len(suppliers) == 0 {
		return SupplierProductMatch{}, false
	}

	products := make(map[string]catalog.ProductMatch)
	for _, p := range m.catalog.FuzzyProductMatches(descs, m.cfg.SupplierProductMinimum) {
		products[p.PO.PONumber] = p
	}

	for _, s := range suppliers {
		p, ok := products[s.PO.PONumber]
		if !ok || s.PO.Total <= 0 {
			continue
		}
		diff := math.Abs(s.PO.Total-inv.Total) / s.PO.Total
		if diff >= m.cfg.TotalTolerance {
			continue
		}

		conf := 0.4*s.Score + 0.4*p.CombinedScore + 0.2*(1-diff)
		return SupplierProductMatch{
			Order:          s.PO,
			SupplierScore:  s.Score,
			ProductScore:   p.CombinedScore,
			TotalDiffRatio: diff,
			Confidence:     math.Min(m.cfg.SupplierProductCap, conf),
		}, true
	}

	return SupplierProductMatch{}, false
}

func (m *Matcher) productOnly(descs []string) (ProductOnlyMatch, bool) {
	products := m.catalog.FuzzyProductMatches(descs, m.cfg.ProductOnlyThreshold)
	if len(products) == 0 {
		return ProductOnlyMatch{}, false
	}

	top := products[0]
	if top.MatchRate() < m.cfg.ProductOnlyMinRate {
		return ProductOnlyMatch{}, false
	}

	return ProductOnlyMatch{
		Order:             top.PO,
		CombinedScore:     top.CombinedScore,
		MatchedCount:      top.MatchedCount,
		TotalDescriptions: top.TotalDescriptions,
		Confidence:        math.Min(m.cfg.ProductOnlyCap, 0.7*top.CombinedScore),
	}, true
}

// result flattens a match into the MatchingResult record
func (m *Matcher) result(inv *entity.ExtractedInvoice, match Match) entity.MatchingResult {
	po, conf := orderAndConfidence(match, m.cfg.ExactConfidence)

	res := entity.MatchingResult{
		POMatchConfidence:  conf,
		MatchMethod:        match.Method(),
		AlternativeMatches: []entity.AlternativeMatch{},
	}
	if inv != nil {
		res.LineItemsTotal = len(inv.LineItems)
	}
	if po == nil {
		return res
	}

	number := po.PONumber
	res.MatchedPO = &number

	poDescs := po.Descriptions()
	for _, item := range inv.LineItems {
		if _, _, ok := similarity.BestMatch(item.Description, poDescs, m.cfg.LineItemThreshold); ok {
			res.LineItemsMatched++
		}
	}
	if res.LineItemsTotal > 0 {
		res.MatchRate = float64(res.LineItemsMatched) / float64(res.LineItemsTotal)
	}
	res.SupplierMatch = similarity.Similarity(inv.SupplierName, po.Supplier) >= m.cfg.SupplierMatchThreshold

	if conf < m.cfg.AlternativesBelow {
		res.AlternativeMatches = m.alternatives(inv.Descriptions(), po.PONumber)
	}

	return res
}

func (m *Matcher) alternatives(descs []string, chosen string) []entity.AlternativeMatch {
	alts := []entity.AlternativeMatch{}
	for _, p := range m.catalog.FuzzyProductMatches(descs, m.cfg.AlternativeThreshold) {
		if p.PO.PONumber == chosen {
			continue
		}
		if len(alts) == m.cfg.MaxAlternatives {
			break
		}
		alts = append(alts, entity.AlternativeMatch{
			PONumber:     p.PO.PONumber,
			Supplier:     p.PO.Supplier,
			Confidence:   p.CombinedScore,
			MatchedItems: p.MatchedCount,
		})
	}
	return alts
}
