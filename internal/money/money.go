// Package money holds the display-layer rounding and formatting rules.
// The pricing engine returns full-precision decimals; rounding happens here,
// once, at presentation time.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RoundUSD rounds a USD amount to cents, half away from zero.
func RoundUSD(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// RoundCOP rounds a COP amount to whole pesos.
func RoundCOP(v decimal.Decimal) decimal.Decimal {
	return v.Round(0)
}

// FormatCOP formats a COP amount as a string like "$12.500".
// Uses dot as thousands separator (common in Colombia).
func FormatCOP(v decimal.Decimal) string {
	rounded := RoundCOP(v)
	neg := rounded.IsNegative()
	s := rounded.Abs().String()

	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + 2)
	if neg {
		b.WriteString("-$")
	} else {
		b.WriteString("$")
	}

	// Insert separators from the left.
	rem := len(s) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(s[:rem])
	for i := rem; i < len(s); i += 3 {
		b.WriteByte('.')
		b.WriteString(s[i : i+3])
	}

	return b.String()
}

// FormatUSD formats a USD amount with two decimals, like "USD 2,500.00".
func FormatUSD(v decimal.Decimal) string {
	rounded := RoundUSD(v)
	neg := rounded.IsNegative()
	s := rounded.Abs().StringFixed(2)

	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString("USD ")
	if neg {
		b.WriteByte('-')
	}

	rem := len(intPart) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(intPart[:rem])
	for i := rem; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	b.WriteByte('.')
	b.WriteString(fracPart)

	return b.String()
}
