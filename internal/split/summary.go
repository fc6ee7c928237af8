package split

import "billsplit/internal/core"

// CategoryShare is a breakdown entry enriched for display.
type CategoryShare struct {
	Category      core.Category `json:"category"`
	Icon          string        `json:"icon"`
	Amount        float64       `json:"amount"`
	DisplayAmount float64       `json:"displayAmount"`
	Share         float64       `json:"share"`
	SweepDegrees  float64       `json:"sweepDegrees"`
}

// Summary bundles every derived value for one view of the ledger.
type Summary struct {
	Currency   string          `json:"currency"`
	Persons    int             `json:"persons"`
	Count      int             `json:"count"`
	BaseTotal  float64         `json:"baseTotal"`
	Total      float64         `json:"total"`
	PerPerson  float64         `json:"perPerson"`
	Categories []CategoryShare `json:"categories"`
}

// Summarize computes the totals, split and breakdown of records in code.
// rates must not be nil; pass Identity to stay in base currency.
func Summarize(records []core.Expense, rates RateSource, code string, persons int) Summary {
	totals := CategoryTotals(records)
	sweeps := SweepAngles(totals)
	r := rate(rates, code)

	shares := make([]CategoryShare, len(totals))
	for i, ca := range totals {
		shares[i] = CategoryShare{
			Category:      ca.Category,
			Icon:          ca.Category.Icon(),
			Amount:        ca.Amount,
			DisplayAmount: r.Mul(decimalOf(ca.Amount)).InexactFloat64(),
			Share:         Share(totals, ca.Category),
			SweepDegrees:  sweeps[i],
		}
	}

	return Summary{
		Currency:   code,
		Persons:    persons,
		Count:      len(records),
		BaseTotal:  Total(records),
		Total:      DisplayTotal(records, rates, code),
		PerPerson:  PerPerson(records, rates, code, persons),
		Categories: shares,
	}
}
