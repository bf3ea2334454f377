// Package money converts between decimal major units and integer minor units (cents).
// Every stored and computed amount is an Amount; major units only appear at I/O boundaries.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a currency value in minor units.
type Amount int64

var hundred = decimal.NewFromInt(100)

// FromMajor converts a major-unit decimal, rounding half away from zero to the nearest cent.
func FromMajor(d decimal.Decimal) Amount {
	return Amount(d.Mul(hundred).Round(0).IntPart())
}

func FromFloat(f float64) Amount {
	return FromMajor(decimal.NewFromFloat(f))
}

// ParseMajor parses values like "1768", "145.2" or "822.80".
func ParseMajor(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromMajor(d), nil
}

func (a Amount) Major() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

func (a Amount) Int64() int64 {
	return int64(a)
}

// String renders the amount with exactly two decimals, e.g. "1768.00".
func (a Amount) String() string {
	return a.Major().StringFixed(2)
}

// MarshalJSON emits a JSON number with a fixed two-digit scale so output stays byte-stable.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := ParseMajor(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Max0 clamps negative amounts to zero.
func Max0(a Amount) Amount {
	if a < 0 {
		return 0
	}
	return a
}

// Clamp restricts a to [lo, hi].
func Clamp(a, lo, hi Amount) Amount {
	if a < lo {
		return lo
	}
	if a > hi {
		return hi
	}
	return a
}

// MulRatio returns round(a * num / den), half away from zero.
func MulRatio(a Amount, num, den decimal.Decimal) Amount {
	if den.IsZero() {
		return 0
	}
	return Amount(decimal.NewFromInt(int64(a)).Mul(num).Div(den).Round(0).IntPart())
}

// Percent returns round(a * pct / 100).
func Percent(a Amount, pct decimal.Decimal) Amount {
	return MulRatio(a, pct, hundred)
}

var symbols = map[string]string{
	"AUD": "$",
	"NZD": "$",
	"USD": "$",
	"CAD": "$",
	"SGD": "$",
	"EUR": "€",
	"GBP": "£",
}

// Format renders an amount for display, e.g. "$1,768.00" or "-$5.50".
func Format(a Amount, currency string) string {
	sign := ""
	if a < 0 {
		sign = "-"
		a = -a
	}

	whole := int64(a) / 100
	cents := int64(a) % 100

	prefix, ok := symbols[strings.ToUpper(currency)]
	if !ok {
		prefix = strings.ToUpper(currency) + " "
	}

	return fmt.Sprintf("%s%s%s.%02d", sign, prefix, groupThousands(whole), cents)
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
