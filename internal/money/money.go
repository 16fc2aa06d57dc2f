// Package money holds exact fixed-point amounts used for prices, discounts and totals.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for stored and displayed amounts.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// Money is an amount in the store currency. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Money{}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

// FromDecimal rounds d to Scale digits.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// Parse reads a decimal string such as "19.90".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money {
	return Money{d: m.d.Add(o.d)}
}

func (m Money) Sub(o Money) Money {
	return Money{d: m.d.Sub(o.d)}
}

// Mul scales the amount by an item quantity.
func (m Money) Mul(qty int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty)))}
}

// Percent returns p percent of m. The division is carried at full precision and
// rounded half away from zero to Scale digits only at the end.
func (m Money) Percent(p decimal.Decimal) Money {
	return Money{d: m.d.Mul(p).Div(hundred).Round(Scale)}
}

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if m.d.LessThanOrEqual(o.d) {
		return m
	}
	return o
}

func (m Money) Cmp(o Money) int {
	return m.d.Cmp(o.d)
}

func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both "12.34" and 12.34.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = FromDecimal(d)
	return nil
}

// Scan reads a NUMERIC column.
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("money: scan: %w", err)
	}
	*m = FromDecimal(d)
	return nil
}

// Value writes the amount as a NUMERIC literal.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
