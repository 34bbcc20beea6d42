// Package money provides exact minor-unit amounts and parsing of the
// decimal strings found in bank exports and on the command line.
package money

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in minor currency units (pence, cents).
// The ledger never stores or computes with floating point.
type Money int64

// Symbol is the currency symbol used for display output. It can be
// overridden via configuration before any rendering happens.
var Symbol = "£"

// SetSymbol overrides the display currency symbol.
func SetSymbol(s string) {
	if s != "" {
		Symbol = s
	}
}

var currencyRunes = regexp.MustCompile(`[€$£¥₣₹₽₩฿CHF\s']`)

// ParseAmount converts a decimal amount string into minor units with exact
// arithmetic. It tolerates currency symbols, thousands separators and both
// "." and "," decimal separators ("£1,234.56", "1'234.56", "12,34").
func ParseAmount(s string) (Money, error) {
	standardized := standardize(s)
	if standardized == "" {
		return 0, fmt.Errorf("empty amount %q", s)
	}

	d, err := decimal.NewFromString(standardized)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	minor := d.Shift(2).Round(0)
	if !minor.IsInteger() || !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", s)
	}
	return Money(minor.IntPart()), nil
}

// standardize strips currency symbols and folds European-style separators
// into a plain decimal string parseable by the decimal package.
func standardize(s string) string {
	s = currencyRunes.ReplaceAllString(strings.TrimSpace(s), "")

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ".") < strings.LastIndex(s, ",") {
			// European format: 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			// Decimal comma: 12,34
			s = parts[0] + "." + parts[1]
		} else {
			// Thousands separators: 1,234,567
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// IsExpense reports whether the amount represents money going out.
func (m Money) IsExpense() bool { return m < 0 }

// String renders the amount with sign and currency symbol, e.g. "-£1,234.56".
func (m Money) String() string {
	sign := ""
	if m < 0 {
		sign = "-"
	}
	units := m.Abs() / 100
	frac := m.Abs() % 100
	return fmt.Sprintf("%s%s%s.%02d", sign, Symbol, groupThousands(int64(units)), frac)
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
