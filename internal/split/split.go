// Package split computes totals, per-person shares and category breakdowns
// over a set of expenses. Everything here is pure: the same inputs always
// give the same outputs.
//
// Sums are accumulated in base currency with decimal arithmetic and
// converted once, on the aggregate. Per-line display amounts are converted
// independently and may differ from the total by display rounding.
package split

import (
	"github.com/shopspring/decimal"

	"billsplit/internal/core"
)

// RateSource resolves a display currency to its multiplier; unknown codes
// are expected to resolve to 1. Every function taking a RateSource requires
// a non-nil one.
type RateSource interface {
	Rate(code string) float64
}

type identity struct{}

func (identity) Rate(string) float64 { return 1 }

// Identity converts every code at rate 1, leaving amounts in base currency.
var Identity RateSource = identity{}

// CategoryAmount is one slice of the category breakdown, in base currency.
type CategoryAmount struct {
	Category core.Category `json:"category"`
	Amount   float64       `json:"amount"`
}

// Total sums the amounts in base currency.
func Total(records []core.Expense) float64 {
	return sum(records).InexactFloat64()
}

// DisplayTotal converts the base-currency total to code.
func DisplayTotal(records []core.Expense, rates RateSource, code string) float64 {
	return displayTotal(records, rates, code).InexactFloat64()
}

// PerPerson divides the display total evenly. Counts below 1 yield 0.
func PerPerson(records []core.Expense, rates RateSource, code string, persons int) float64 {
	if persons < 1 {
		return 0
	}
	return displayTotal(records, rates, code).
		Div(decimal.NewFromInt(int64(persons))).
		InexactFloat64()
}

// LineAmount converts a single expense for line-item display.
func LineAmount(e core.Expense, rates RateSource, code string) float64 {
	return decimal.NewFromFloat(e.Amount).
		Mul(rate(rates, code)).
		InexactFloat64()
}

// CategoryTotals sums amounts per stored category, ordered by first
// appearance in records.
func CategoryTotals(records []core.Expense) []CategoryAmount {
	idx := make(map[core.Category]int)
	var sums []decimal.Decimal
	var order []core.Category
	for _, e := range records {
		i, ok := idx[e.Category]
		if !ok {
			i = len(order)
			idx[e.Category] = i
			order = append(order, e.Category)
			sums = append(sums, decimal.Zero)
		}
		sums[i] = sums[i].Add(decimal.NewFromFloat(e.Amount))
	}

	out := make([]CategoryAmount, len(order))
	for i, c := range order {
		out[i] = CategoryAmount{Category: c, Amount: sums[i].InexactFloat64()}
	}
	return out
}

// Share is category's fraction of the breakdown total, 0 when the total is
// zero or the category is absent.
func Share(totals []CategoryAmount, category core.Category) float64 {
	total := decimal.Zero
	part := decimal.Zero
	for _, ca := range totals {
		d := decimal.NewFromFloat(ca.Amount)
		total = total.Add(d)
		if ca.Category == category {
			part = part.Add(d)
		}
	}
	if total.IsZero() {
		return 0
	}
	return part.Div(total).InexactFloat64()
}

// SweepAngles returns the pie-chart sweep in degrees for each entry of
// totals, in the same order.
func SweepAngles(totals []CategoryAmount) []float64 {
	out := make([]float64, len(totals))
	for i, ca := range totals {
		out[i] = Share(totals, ca.Category) * 360
	}
	return out
}

func sum(records []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range records {
		total = total.Add(decimal.NewFromFloat(e.Amount))
	}
	return total
}

func displayTotal(records []core.Expense, rates RateSource, code string) decimal.Decimal {
	return sum(records).Mul(rate(rates, code))
}

func decimalOf(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func rate(rates RateSource, code string) decimal.Decimal {
	return decimal.NewFromFloat(rates.Rate(code))
}
