package domain

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a currency-unscaled decimal amount. It serialises as a bare JSON
// number so persisted records keep the `amount: number` shape.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MoneyFromFloat is a convenience for tests and fixtures.
func MoneyFromFloat(f float64) Money {
	return Money{Decimal: decimal.NewFromFloat(f)}
}

// ParseMoney parses user input such as "12.50". It does not check the sign.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

// Plus returns m + o.
func (m Money) Plus(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

// Minus returns m - o.
func (m Money) Minus(o Money) Money {
	return Money{Decimal: m.Decimal.Sub(o.Decimal)}
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.Decimal.IsPositive()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || string(b) == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", string(b), err)
	}
	m.Decimal = d
	return nil
}
