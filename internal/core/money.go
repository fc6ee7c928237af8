// Package core holds the ledger's record types and the small helpers that
// parse and print monetary amounts.
package core

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ParseAmount converts user input to a positive amount.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted.
// Blank, malformed, zero and negative inputs yield a ValidationError.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	f := d.InexactFloat64()
	if err := ValidateAmount(f); err != nil {
		return 0, err
	}
	return f, nil
}

// FormatAmount renders value in the given currency with its symbol, e.g.
// "₹1,700.00" or "$8.40". Codes unknown to the currency table are printed
// as "8.40 XYZ".
func FormatAmount(value float64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	cur := money.GetCurrency(code)
	if cur == nil {
		return fmt.Sprintf("%s %s", decimal.NewFromFloat(value).StringFixed(2), code)
	}
	minor := decimal.NewFromFloat(value).
		Round(int32(cur.Fraction)).
		Shift(int32(cur.Fraction)).
		IntPart()
	return money.New(minor, code).Display()
}

// Symbol returns the display symbol for a currency code, falling back to
// the code itself.
func Symbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if cur := money.GetCurrency(code); cur != nil && cur.Grapheme != "" {
		return cur.Grapheme
	}
	return code
}
