// Package money centralises monetary arithmetic for consolidation workloads.
//
// All amounts are shopspring decimals. Rounding happens once, at the final
// consolidated-line level, using banker's rounding at the currency's minor
// unit. Intermediate sums are never rounded.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultScale is used when the currency code cannot be resolved.
const DefaultScale = 2

// MinorUnitScale returns the number of decimal digits for the currency's
// smallest cash unit (2 for USD, 0 for JPY, 3 for KWD).
func MinorUnitScale(code string) int32 {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return DefaultScale
	}
	scale, _ := currency.Cash.Rounding(unit)
	return int32(scale)
}

// Round applies banker's rounding at the currency's minor-unit scale.
func Round(v decimal.Decimal, ccy string) decimal.Decimal {
	return v.RoundBank(MinorUnitScale(ccy))
}

// MinorUnit returns the smallest representable amount in the currency,
// e.g. 0.01 for USD and 1 for JPY. Balance tolerances are expressed in it.
func MinorUnit(ccy string) decimal.Decimal {
	return decimal.New(1, -MinorUnitScale(ccy))
}

// WithinMinorUnit reports whether the difference between two amounts is at
// most one minor unit of the currency.
func WithinMinorUnit(a, b decimal.Decimal, ccy string) bool {
	return a.Sub(b).Abs().LessThanOrEqual(MinorUnit(ccy))
}

// Percent converts a 0-100 percentage into an exact decimal ratio.
func Percent(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(decimal.NewFromInt(100))
}
