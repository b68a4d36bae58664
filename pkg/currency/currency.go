// Package currency holds display helpers for the currencies the checkout
// supports. Conversion rates come from the backend; this package only
// formats.
package currency

import "github.com/shopspring/decimal"

const Settlement = "PI"

// DefaultAllowed is the currency set offered when the embedder does not
// restrict it.
var DefaultAllowed = []string{"PI", "USD", "EUR", "GBP"}

var symbols = map[string]string{
	"PI":  "π",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// Symbol returns the display symbol for a currency code, falling back to the
// code itself.
func Symbol(code string) string {
	if s, ok := symbols[code]; ok {
		return s
	}
	return code
}

// Format renders an amount with its currency symbol. Fiat currencies show two
// decimal places; the settlement currency keeps its natural precision with
// trailing zeros trimmed.
func Format(amount decimal.Decimal, code string) string {
	if code == Settlement {
		return amount.String() + " " + Symbol(code)
	}
	return Symbol(code) + amount.StringFixed(2)
}

// Apply multiplies an amount by a conversion rate, rounding to a displayable
// precision.
func Apply(amount, rate decimal.Decimal, code string) decimal.Decimal {
	converted := amount.Mul(rate)
	if code == Settlement {
		return converted
	}
	return converted.Round(2)
}
