package discrepancy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"GBP": "£",
	"EUR": "€",
	"USD": "$",
}

// Money formats amount with the currency symbol, or the code when unknown
func Money(currency string, amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if sym, ok := currencySymbols[currency]; ok {
		return fmt.Sprintf("%s%s%.2f", sign, sym, amount)
	}
	return fmt.Sprintf("%s%.2f %s", sign, amount, currency)
}

// Round2 rounds half away from zero to two decimal places
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func direction(v float64) string {
	if v < 0 {
		return "decrease"
	}
	return "increase"
}

func formatQty(q float64, unit string) string {
	s := fmt.Sprintf("%g", q)
	if q == math.Trunc(q) {
		s = fmt.Sprintf("%.0f", q)
	}
	if unit == "" {
		return s
	}
	return s + " " + unit
}

func ptr[T any](v T) *T { return &v }
